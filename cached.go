package abac

// CachedStrategy memoizes evaluation results across Enumerate calls on the
// same instance. Entities and rules are immutable once loaded, so a memoized
// verdict never goes stale; repeated enumerations over overlapping
// populations skip straight to the remembered answer.
//
// The memo maps are plain maps guarded by nothing. A CachedStrategy instance
// must not be shared across goroutines.
type CachedStrategy[N comparable, V Value[V]] struct {
	userVerdicts     map[entityRuleKey]bool
	resourceVerdicts map[entityRuleKey]bool
	pairVerdicts     map[pairRuleKey]bool
}

type entityRuleKey struct {
	entityID string
	ruleID   int
}

type pairRuleKey struct {
	userID     string
	resourceID string
	ruleID     int
}

// NewCachedStrategy builds a cached strategy with empty memo maps
func NewCachedStrategy[N comparable, V Value[V]]() *CachedStrategy[N, V] {
	return &CachedStrategy[N, V]{
		userVerdicts:     make(map[entityRuleKey]bool),
		resourceVerdicts: make(map[entityRuleKey]bool),
		pairVerdicts:     make(map[pairRuleKey]bool),
	}
}

func (*CachedStrategy[N, V]) Name() string { return StrategyCached }

func (s *CachedStrategy[N, V]) userHolds(rule *Rule[N, V], user Entity[N, V]) (bool, error) {
	key := entityRuleKey{entityID: user.ID(), ruleID: rule.ID}
	if v, ok := s.userVerdicts[key]; ok {
		return v, nil
	}
	v, err := entityConditionsHold(rule.UserConditions, user)
	if err != nil {
		return false, err
	}
	s.userVerdicts[key] = v
	return v, nil
}

func (s *CachedStrategy[N, V]) resourceHolds(rule *Rule[N, V], resource Entity[N, V]) (bool, error) {
	key := entityRuleKey{entityID: resource.ID(), ruleID: rule.ID}
	if v, ok := s.resourceVerdicts[key]; ok {
		return v, nil
	}
	v, err := entityConditionsHold(rule.ResourceConditions, resource)
	if err != nil {
		return false, err
	}
	s.resourceVerdicts[key] = v
	return v, nil
}

func (s *CachedStrategy[N, V]) pairHolds(rule *Rule[N, V], user, resource Entity[N, V]) (bool, error) {
	key := pairRuleKey{userID: user.ID(), resourceID: resource.ID(), ruleID: rule.ID}
	if v, ok := s.pairVerdicts[key]; ok {
		return v, nil
	}
	v, err := comparisonsHold(rule, user, resource)
	if err != nil {
		return false, err
	}
	s.pairVerdicts[key] = v
	return v, nil
}

func (s *CachedStrategy[N, V]) Enumerate(p *Policy[N, V], rule *Rule[N, V], maxUsers int, emit func(Match)) error {
	for _, user := range p.BoundedUsers(maxUsers) {
		ok, err := s.userHolds(rule, user)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		for _, resource := range p.Resources {
			ok, err := s.resourceHolds(rule, resource)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			ok, err = s.pairHolds(rule, user, resource)
			if err != nil {
				return err
			}
			if ok {
				emit(Match{UserID: user.ID(), ResourceID: resource.ID()})
			}
		}
	}
	return nil
}

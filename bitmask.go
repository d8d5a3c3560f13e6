package abac

// BitmaskStrategy prunes entities with cheap attribute-presence masks before
// any condition is evaluated. Every entity condition except a not-equal test
// fails outright when its left attribute is absent, so an entity missing a
// required attribute can be skipped without touching the evaluator.
//
// Masks are conservative: bit collisions from the 64-bit wrap and conditions
// the mask cannot reason about only ever admit extra candidates, which the
// full evaluation then rejects. Pruning never drops a real match.
type BitmaskStrategy[N comparable, V Value[V]] struct{}

func (BitmaskStrategy[N, V]) Name() string { return StrategyBitmask }

// attributeBits assigns a bit to each distinct attribute name referenced by
// the condition list, wrapping past 64 names
type attributeBits[N comparable] map[N]uint64

func (ab attributeBits[N]) bitFor(name N) uint64 {
	if b, ok := ab[name]; ok {
		return b
	}
	b := uint64(1) << (len(ab) % 64)
	ab[name] = b
	return b
}

// requiredMask folds the left attribute of every presence-requiring
// condition into a mask. Not-equal conditions hold vacuously on absent
// attributes and contribute nothing.
func requiredMask[N comparable, V Value[V]](conds []Condition[N, V], bits attributeBits[N]) uint64 {
	var mask uint64
	for _, c := range conds {
		if c.Operator == NotEqual {
			continue
		}
		if c.Left.Kind == ExprAttributeName {
			mask |= bits.bitFor(c.Left.Name)
		}
	}
	return mask
}

// carriedMask reports which of the referenced attributes the entity carries
func carriedMask[N comparable, V Value[V]](ent Entity[N, V], bits attributeBits[N]) uint64 {
	var mask uint64
	for name, b := range bits {
		if _, ok := ent.AttributeValue(name); ok {
			mask |= b
			continue
		}
		if _, ok := ent.AttributeSet(name); ok {
			mask |= b
		}
	}
	return mask
}

func (BitmaskStrategy[N, V]) Enumerate(p *Policy[N, V], rule *Rule[N, V], maxUsers int, emit func(Match)) error {
	userBits := attributeBits[N]{}
	userRequired := requiredMask(rule.UserConditions, userBits)
	resourceBits := attributeBits[N]{}
	resourceRequired := requiredMask(rule.ResourceConditions, resourceBits)

	var users []Entity[N, V]
	for _, user := range p.BoundedUsers(maxUsers) {
		if userRequired&^carriedMask(user, userBits) != 0 {
			continue
		}
		ok, err := entityConditionsHold(rule.UserConditions, user)
		if err != nil {
			return err
		}
		if ok {
			users = append(users, user)
		}
	}
	if len(users) == 0 {
		return nil
	}

	var resources []Entity[N, V]
	for _, resource := range p.Resources {
		if resourceRequired&^carriedMask(resource, resourceBits) != 0 {
			continue
		}
		ok, err := entityConditionsHold(rule.ResourceConditions, resource)
		if err != nil {
			return err
		}
		if ok {
			resources = append(resources, resource)
		}
	}

	for _, user := range users {
		for _, resource := range resources {
			ok, err := comparisonsHold(rule, user, resource)
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

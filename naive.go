package abac

// NaiveStrategy evaluates the rule over the full cross product of users and
// resources. It is the semantic baseline every other strategy is checked
// against.
type NaiveStrategy[N comparable, V Value[V]] struct{}

func (NaiveStrategy[N, V]) Name() string { return StrategyNaive }

func (NaiveStrategy[N, V]) Enumerate(p *Policy[N, V], rule *Rule[N, V], maxUsers int, emit func(Match)) error {
	for _, user := range p.BoundedUsers(maxUsers) {
		for _, resource := range p.Resources {
			ok, err := RuleMatches(rule, user, resource)
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

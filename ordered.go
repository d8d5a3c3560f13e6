package abac

import "sort"

// OrderedStrategy hoists the per-entity condition sections out of the pair
// loop: user conditions are checked once per user and resource conditions
// once per resource, so the cross product only re-evaluates the comparison
// section. It also plans rule evaluation order by rule complexity.
type OrderedStrategy[N comparable, V Value[V]] struct{}

func (OrderedStrategy[N, V]) Name() string { return StrategyOrdered }

// PlanRules orders rules cheapest first by total condition count
func (OrderedStrategy[N, V]) PlanRules(p *Policy[N, V]) []int {
	order := make([]int, len(p.Rules))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return p.Rules[order[a]].ConditionCount() < p.Rules[order[b]].ConditionCount()
	})
	return order
}

func (OrderedStrategy[N, V]) Enumerate(p *Policy[N, V], rule *Rule[N, V], maxUsers int, emit func(Match)) error {
	users := p.BoundedUsers(maxUsers)
	candidates := make([]Entity[N, V], 0, len(users))
	for _, user := range users {
		ok, err := entityConditionsHold(rule.UserConditions, user)
		if err != nil {
			return err
		}
		if ok {
			candidates = append(candidates, user)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	resources := make([]Entity[N, V], 0, len(p.Resources))
	for _, resource := range p.Resources {
		ok, err := entityConditionsHold(rule.ResourceConditions, resource)
		if err != nil {
			return err
		}
		if ok {
			resources = append(resources, resource)
		}
	}

	for _, user := range candidates {
		for _, resource := range resources {
			matched := true
			for _, c := range rule.ComparisonConditions {
				ok, err := evalComparisonCondition(c, user, resource)
				if err != nil {
					return err
				}
				if !ok {
					matched = false
					break
				}
			}
			if matched {
				emit(Match{UserID: user.ID(), ResourceID: resource.ID()})
			}
		}
	}
	return nil
}

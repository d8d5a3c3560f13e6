package abac

import (
	"fmt"
	"strings"
)

// IndexedStrategy accelerates rules whose comparison section contains
// attribute-to-attribute equality joins. Resources are bucketed by the
// values of the right-hand join attributes, and each user probes its bucket
// instead of scanning every resource.
//
// The joint resolution order makes naive bucketing unsound: a join name that
// also resolves on the user binds to the user's value, not the resource's.
// Users where that happens, and resources whose join attributes do not
// resolve to single values, fall back to a full scan so the output stays
// identical to the baseline.
type IndexedStrategy[N comparable, V Value[V]] struct{}

func (IndexedStrategy[N, V]) Name() string { return StrategyIndexed }

// joinCondition is a comparison condition of the form left = right where
// both sides are attribute names
type joinCondition[N comparable] struct {
	left, right N
}

func equalityJoins[N comparable, V Value[V]](rule *Rule[N, V]) []joinCondition[N] {
	var joins []joinCondition[N]
	for _, c := range rule.ComparisonConditions {
		if c.Operator == Equals && c.Left.Kind == ExprAttributeName && c.Right.Kind == ExprAttributeName {
			joins = append(joins, joinCondition[N]{left: c.Left.Name, right: c.Right.Name})
		}
	}
	return joins
}

func (s IndexedStrategy[N, V]) Enumerate(p *Policy[N, V], rule *Rule[N, V], maxUsers int, emit func(Match)) error {
	joins := equalityJoins(rule)
	if len(joins) == 0 {
		return OrderedStrategy[N, V]{}.Enumerate(p, rule, maxUsers, emit)
	}

	// Bucket resources by the composite value of the right-hand join
	// attributes. A resource where any join attribute is absent or
	// multi-valued cannot be keyed and joins the residual scan list.
	buckets := make(map[string][]Entity[N, V])
	var residual []Entity[N, V]
	var filtered []Entity[N, V]
	for _, resource := range p.Resources {
		ok, err := entityConditionsHold(rule.ResourceConditions, resource)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		filtered = append(filtered, resource)
		key, keyed := compositeKey(joins, resource, func(j joinCondition[N]) N { return j.right })
		if keyed {
			buckets[key] = append(buckets[key], resource)
		} else {
			residual = append(residual, resource)
		}
	}

	for _, user := range p.BoundedUsers(maxUsers) {
		ok, err := entityConditionsHold(rule.UserConditions, user)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		// Shadowed or unkeyable users fall back to the full filtered list
		pool := filtered
		var extra []Entity[N, V]
		if key, probeOK := userProbeKey(joins, user); probeOK {
			pool = buckets[key]
			extra = residual
		}
		for _, resource := range pool {
			ok, err := comparisonsHold(rule, user, resource)
			if err != nil {
				return err
			}
			if ok {
				emit(Match{UserID: user.ID(), ResourceID: resource.ID()})
			}
		}
		for _, resource := range extra {
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

func comparisonsHold[N comparable, V Value[V]](rule *Rule[N, V], user, resource Entity[N, V]) (bool, error) {
	for _, c := range rule.ComparisonConditions {
		ok, err := evalComparisonCondition(c, user, resource)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// compositeKey builds a bucket key from an entity's single values under the
// selected join attribute. It reports false when any attribute is missing or
// multi-valued on the entity.
func compositeKey[N comparable, V Value[V]](joins []joinCondition[N], ent Entity[N, V], pick func(joinCondition[N]) N) (string, bool) {
	var b strings.Builder
	for _, j := range joins {
		v, ok := ent.AttributeValue(pick(j))
		if !ok {
			return "", false
		}
		fmt.Fprintf(&b, "%v\x1f", v)
	}
	return b.String(), true
}

// userProbeKey builds the user's probe key from the left-hand join
// attributes. It reports false when a left attribute is not a single value
// on the user, or when a right attribute resolves on the user and would
// shadow the resource's value under joint resolution.
func userProbeKey[N comparable, V Value[V]](joins []joinCondition[N], user Entity[N, V]) (string, bool) {
	var b strings.Builder
	for _, j := range joins {
		if _, ok := user.AttributeValue(j.right); ok {
			return "", false
		}
		if _, ok := user.AttributeSet(j.right); ok {
			return "", false
		}
		v, ok := user.AttributeValue(j.left)
		if !ok {
			return "", false
		}
		fmt.Fprintf(&b, "%v\x1f", v)
	}
	return b.String(), true
}

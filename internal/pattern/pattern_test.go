package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triangle() *Graph {
	nodes := []Node{{ID: 0}, {ID: 1}, {ID: 2}, {ID: 3}}
	edges := []Edge{
		{ID: 0, Signature: "a", Start: 0, End: 1},
		{ID: 1, Signature: "b", Start: 1, End: 2},
		{ID: 2, Signature: "c", Start: 2, End: 0},
		{ID: 3, Signature: "d", Start: 3, End: 3},
	}
	return NewGraph(nodes, edges)
}

func TestGraph_SharedNodes(t *testing.T) {
	g := triangle()

	assert.Equal(t, []int{1}, g.SharedNodes(0, 1))
	assert.Equal(t, []int{0}, g.SharedNodes(0, 2))
	assert.Equal(t, []int{0, 1}, g.SharedNodes(0, 0))
	assert.Empty(t, g.SharedNodes(0, 3))

	assert.True(t, g.SharesNode(1, 2))
	assert.False(t, g.SharesNode(2, 3))
}

func TestNewGraph_CopiesInput(t *testing.T) {
	edges := []Edge{{ID: 0, Signature: "a", Start: 0, End: 1}}
	g := NewGraph([]Node{{ID: 0}, {ID: 1}}, edges)

	edges[0].Signature = "mutated"
	assert.Equal(t, "a", g.Edge(0).Signature)
}

func TestOrderRelation_DefaultsToRoot(t *testing.T) {
	r := NewOrderRelation(3, map[int][]int{2: {0, 1}})

	assert.Equal(t, []int{Root}, r.Parents(0))
	assert.Equal(t, []int{Root}, r.Parents(1))
	assert.Equal(t, []int{0, 1}, r.Children(Root))
	assert.Equal(t, []int{2}, r.Children(0))
	assert.Equal(t, []int{2}, r.Children(1))
	assert.Empty(t, r.Children(2))

	assert.True(t, r.IsParent(0, 2))
	assert.False(t, r.IsParent(2, 0))
	assert.True(t, r.Related(2, 1))
	assert.False(t, r.Related(0, 1))
}

func TestValidate_DetectsSelfDependency(t *testing.T) {
	p := &Pattern{
		Graph: NewGraph([]Node{{ID: 0}, {ID: 1}}, []Edge{{ID: 0, Signature: "a", Start: 0, End: 1}}),
		Order: NewOrderRelation(1, map[int][]int{0: {0}}),
	}

	err := p.Validate()
	require.Error(t, err)
	assert.True(t, IsCycleError(err))
}

func TestValidate_DetectsLongCycle(t *testing.T) {
	p := &Pattern{
		Graph: triangle(),
		Order: NewOrderRelation(4, map[int][]int{
			1: {0},
			2: {1},
			0: {2},
		}),
	}

	err := p.Validate()
	require.Error(t, err)
	assert.True(t, IsCycleError(err))
	assert.Contains(t, err.Error(), "e0 → e1 → e2 → e0")
}

func TestValidate_AcceptsDiamond(t *testing.T) {
	p := &Pattern{
		Graph: triangle(),
		Order: NewOrderRelation(4, map[int][]int{
			1: {0},
			2: {0},
			3: {1, 2},
		}),
	}
	assert.NoError(t, p.Validate())
}

func TestValidate_MismatchedOrderSize(t *testing.T) {
	p := &Pattern{
		Graph: triangle(),
		Order: NewOrderRelation(2, nil),
	}
	err := p.Validate()
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeIDs, pe.Code)
}

func TestValidate_RejectsBadRegex(t *testing.T) {
	p := &Pattern{
		Graph:    NewGraph([]Node{{ID: 0}, {ID: 1}}, []Edge{{ID: 0, Signature: "open(", Start: 0, End: 1}}),
		Order:    NewOrderRelation(1, nil),
		UseRegex: true,
	}
	err := p.Validate()
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeSignature, pe.Code)

	p.UseRegex = false
	assert.NoError(t, p.Validate(), "literal signatures are not compiled")
}

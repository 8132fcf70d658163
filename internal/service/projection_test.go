package service

import (
	"testing"

	"github.com/rongwang/tripsync/internal/models"
	"github.com/stretchr/testify/assert"
)

func avg(v float64) *float64 { return &v }

func ids(list []models.Proposal) []int64 {
	out := make([]int64, 0, len(list))
	for _, p := range list {
		out = append(out, p.ID)
	}
	return out
}

func TestProject_OrdersByAverageThenID(t *testing.T) {
	list := []models.Proposal{
		{ID: 10, AverageRanking: avg(3.0)},
		{ID: 11},
		{ID: 13, AverageRanking: avg(1.0)},
		{ID: 12, AverageRanking: avg(1.0)},
	}

	got := Project(list)

	assert.Equal(t, []int64{12, 13, 10, 11}, ids(got))
	assert.Equal(t, int64(10), list[0].ID, "input order must not change")
}

func TestProject_DropsCanceled(t *testing.T) {
	list := []models.Proposal{
		{ID: 1, Status: models.StatusActive},
		{ID: 2, Status: models.StatusCanceled},
		{ID: 3, Status: models.StatusActive, AverageRanking: avg(2)},
	}

	got := Project(list)

	assert.Equal(t, []int64{3, 1}, ids(got))
	for _, p := range got {
		assert.False(t, p.IsCanceled())
	}
}

func TestProject_Empty(t *testing.T) {
	assert.Empty(t, Project(nil))
}

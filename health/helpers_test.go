package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregate_Empty(t *testing.T) {
	status := Aggregate("system", nil)
	assert.True(t, status.IsHealthy())
	assert.Empty(t, status.SubStatuses)
}

func TestAggregate_AllHealthy(t *testing.T) {
	subs := []Status{
		NewHealthy("bridge", "OK"),
		NewHealthy("gateway", "OK"),
	}

	status := Aggregate("system", subs)
	assert.True(t, status.IsHealthy())
	assert.Len(t, status.SubStatuses, 2)
}

func TestAggregate_UnhealthyWins(t *testing.T) {
	subs := []Status{
		NewHealthy("gateway", "OK"),
		NewDegraded("monitor", "slow subscribers"),
		NewUnhealthy("bridge", "run loop terminated"),
	}

	status := Aggregate("system", subs)
	assert.True(t, status.IsUnhealthy())
	assert.Contains(t, status.Message, "bridge")
}

func TestAggregate_DegradedWithoutUnhealthy(t *testing.T) {
	subs := []Status{
		NewHealthy("gateway", "OK"),
		NewDegraded("bridge", "queue near bound"),
	}

	status := Aggregate("system", subs)
	assert.True(t, status.IsDegraded())
	assert.Contains(t, status.Message, "bridge")
}

func TestAggregate_CopiesSubStatuses(t *testing.T) {
	subs := []Status{NewHealthy("bridge", "OK")}
	status := Aggregate("system", subs)

	subs[0].Status = "unhealthy"
	assert.Equal(t, "healthy", status.SubStatuses[0].Status)
}

func TestWithSubStatus_SliceIsolation(t *testing.T) {
	original := Status{
		Component: "parent",
		Status:    "healthy",
		SubStatuses: []Status{
			{Component: "child1", Status: "healthy"},
		},
	}

	modified := original.WithSubStatus(Status{
		Component: "child2",
		Status:    "unhealthy",
	})

	assert.Len(t, original.SubStatuses, 1, "Original should still have 1 sub-status")
	assert.Len(t, modified.SubStatuses, 2, "Modified should have 2 sub-statuses")

	original.SubStatuses[0].Status = "degraded"
	assert.Equal(t, "healthy", modified.SubStatuses[0].Status, "Modified should not share the original's array")
}

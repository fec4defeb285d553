package health

import (
	"fmt"
	"time"
)

// NewHealthy creates a new healthy status
func NewHealthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   true,
		Status:    "healthy",
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewUnhealthy creates a new unhealthy status
func NewUnhealthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   false,
		Status:    "unhealthy",
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewDegraded creates a new degraded status
func NewDegraded(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   false,
		Status:    "degraded",
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Aggregate creates a status by aggregating sub-statuses.
// The aggregation rules are:
//   - If all sub-statuses are healthy, the aggregate is healthy
//   - If any sub-status is unhealthy, the aggregate is unhealthy
//   - If no sub-status is unhealthy but at least one is degraded, the aggregate is degraded
//
// The aggregate message names the first offending component so probes don't
// have to walk sub-statuses to find the cause.
func Aggregate(component string, subStatuses []Status) Status {
	if len(subStatuses) == 0 {
		return NewHealthy(component, "No sub-components to aggregate")
	}

	var firstUnhealthy, firstDegraded *Status
	for i := range subStatuses {
		sub := &subStatuses[i]
		if sub.IsUnhealthy() && firstUnhealthy == nil {
			firstUnhealthy = sub
		} else if sub.IsDegraded() && firstDegraded == nil {
			firstDegraded = sub
		}
	}

	var status Status
	switch {
	case firstUnhealthy != nil:
		status = NewUnhealthy(component, fmt.Sprintf("%s is unhealthy", firstUnhealthy.Component))
	case firstDegraded != nil:
		status = NewDegraded(component, fmt.Sprintf("%s is degraded", firstDegraded.Component))
	default:
		status = NewHealthy(component, "All sub-components are healthy")
	}

	status.SubStatuses = make([]Status, len(subStatuses))
	copy(status.SubStatuses, subStatuses)

	return status
}

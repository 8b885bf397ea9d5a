package metadata

import "fmt"

// DeliveryStatus is the state of a farm's delivery request.
type DeliveryStatus string

const (
	DeliveryStatusRequested  DeliveryStatus = "requested"
	DeliveryStatusInProgress DeliveryStatus = "in_progress"
	DeliveryStatusDelivered  DeliveryStatus = "delivered"
	DeliveryStatusCancelled  DeliveryStatus = "cancelled"
)

var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryStatusRequested:  {DeliveryStatusInProgress, DeliveryStatusCancelled},
	DeliveryStatusInProgress: {DeliveryStatusDelivered, DeliveryStatusCancelled},
	DeliveryStatusDelivered:  {},
	DeliveryStatusCancelled:  {},
}

func NewDeliveryStatus(value string) (DeliveryStatus, error) {
	status := DeliveryStatus(value)
	if _, ok := deliveryTransitions[status]; !ok {
		return "", fmt.Errorf("invalid delivery status: %s", value)
	}
	return status, nil
}

func (s DeliveryStatus) String() string {
	return string(s)
}

func (s DeliveryStatus) IsTerminal() bool {
	next, ok := deliveryTransitions[s]
	return ok && len(next) == 0
}

func (s DeliveryStatus) CanTransitionTo(to DeliveryStatus) bool {
	for _, candidate := range deliveryTransitions[s] {
		if candidate == to {
			return true
		}
	}
	return false
}

package metadata

import "fmt"

// QRStatus is the lifecycle state of a single QR code.
type QRStatus string

const (
	QRStatusAvailable QRStatus = "available"
	QRStatusAllocated QRStatus = "allocated"
	QRStatusBound     QRStatus = "bound"
	QRStatusDelivered QRStatus = "delivered"
)

// QREvent is something that moves a QR code between states.
type QREvent string

const (
	QREventAllocate QREvent = "allocate"
	QREventBind     QREvent = "bind"
	QREventUnbind   QREvent = "unbind"
	QREventDeliver  QREvent = "deliver"
)

var qrTransitions = map[QRStatus]map[QREvent]QRStatus{
	QRStatusAvailable: {
		QREventAllocate: QRStatusAllocated,
		QREventDeliver:  QRStatusDelivered,
	},
	QRStatusAllocated: {
		QREventBind:    QRStatusBound,
		QREventDeliver: QRStatusDelivered,
	},
	QRStatusBound: {
		QREventUnbind: QRStatusAvailable,
	},
	QRStatusDelivered: {},
}

func NewQRStatus(value string) (QRStatus, error) {
	status := QRStatus(value)
	if !status.isValid() {
		return "", fmt.Errorf("invalid qr status: %s", value)
	}
	return status, nil
}

func (s QRStatus) isValid() bool {
	_, ok := qrTransitions[s]
	return ok
}

func (s QRStatus) String() string {
	return string(s)
}

// NextQRStatus returns the state reached by applying event to from.
func NextQRStatus(from QRStatus, event QREvent) (QRStatus, error) {
	events, ok := qrTransitions[from]
	if !ok {
		return "", fmt.Errorf("invalid qr status: %s", from)
	}
	to, ok := events[event]
	if !ok {
		return "", fmt.Errorf("qr code in status %s cannot %s", from, event)
	}
	return to, nil
}

// QRSourcesFor lists every state from which event is legal. Repositories use
// it as the status guard of a conditional update.
func QRSourcesFor(event QREvent) []QRStatus {
	var sources []QRStatus
	for _, from := range []QRStatus{QRStatusAvailable, QRStatusAllocated, QRStatusBound, QRStatusDelivered} {
		if _, ok := qrTransitions[from][event]; ok {
			sources = append(sources, from)
		}
	}
	return sources
}

// QREventFor finds the event that moves from into to, used by bulk status updates.
func QREventFor(from, to QRStatus) (QREvent, bool) {
	for event, target := range qrTransitions[from] {
		if target == to {
			return event, true
		}
	}
	return "", false
}

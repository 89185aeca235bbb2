package gogsapi

// RequestDescriptor identifies one API request for observers.
type RequestDescriptor struct {
	Operation         OperationName
	Method            Method
	Path              string
	RequestIdentifier string
}

// RequestEventObserver receives lifecycle notifications for API requests.
type RequestEventObserver interface {
	// RequestStarted notifies observers that the request is about to be sent.
	RequestStarted(descriptor RequestDescriptor)
	// RequestCompleted notifies observers that a response arrived, whatever its status.
	RequestCompleted(descriptor RequestDescriptor, outcome Outcome)
	// RequestFailed reports failures that prevented a response from being received or decoded.
	RequestFailed(descriptor RequestDescriptor, failure error)
}

type noopRequestEventObserver struct{}

func (noopRequestEventObserver) RequestStarted(RequestDescriptor) {}

func (noopRequestEventObserver) RequestCompleted(RequestDescriptor, Outcome) {}

func (noopRequestEventObserver) RequestFailed(RequestDescriptor, error) {}

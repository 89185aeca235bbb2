package utils

import "context"

type invocationContextKey struct{}

// InvocationMetadata describes the CLI invocation a command runs under.
type InvocationMetadata struct {
	InvocationIdentifier  string
	ConfigurationFilePath string
}

// CommandContextAccessor stores and retrieves InvocationMetadata on command contexts.
type CommandContextAccessor struct{}

// NewCommandContextAccessor constructs a CommandContextAccessor instance.
func NewCommandContextAccessor() CommandContextAccessor {
	return CommandContextAccessor{}
}

// WithInvocationMetadata attaches metadata to parentContext. A nil parent is replaced by context.Background.
func (accessor CommandContextAccessor) WithInvocationMetadata(parentContext context.Context, metadata InvocationMetadata) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	return context.WithValue(parentContext, invocationContextKey{}, metadata)
}

// InvocationMetadata extracts the metadata attached to executionContext.
func (accessor CommandContextAccessor) InvocationMetadata(executionContext context.Context) (InvocationMetadata, bool) {
	if executionContext == nil {
		return InvocationMetadata{}, false
	}
	metadata, available := executionContext.Value(invocationContextKey{}).(InvocationMetadata)
	return metadata, available
}

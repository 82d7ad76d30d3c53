package langfuse

// Langfuse attribute keys understood by the backend's OTLP endpoint.
const (
	attrTraceName     = "langfuse.trace.name"
	attrUserID        = "langfuse.user.id"
	attrSessionID     = "langfuse.session.id"
	attrTraceTags     = "langfuse.trace.tags"
	attrTraceMetadata = "langfuse.trace.metadata"
	attrTraceInput    = "langfuse.trace.input"
	attrTraceOutput   = "langfuse.trace.output"

	attrObservationType          = "langfuse.observation.type"
	attrObservationMetadata      = "langfuse.observation.metadata"
	attrObservationLevel         = "langfuse.observation.level"
	attrObservationStatusMessage = "langfuse.observation.status_message"
	attrObservationInput         = "langfuse.observation.input"
	attrObservationOutput        = "langfuse.observation.output"

	attrCompletionStartTime = "langfuse.observation.completion_start_time"
	attrModel               = "langfuse.observation.model.name"
	attrModelParameters     = "langfuse.observation.model.parameters"
	attrUsageDetails        = "langfuse.observation.usage_details"

	attrEnvironment = "langfuse.environment"
	attrRelease     = "langfuse.release"
)

// Observation types.
const (
	observationSpan       = "span"
	observationGeneration = "generation"
	observationEvent      = "event"
)

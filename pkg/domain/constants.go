package domain

// Endpoint names of the external services. They double as metric labels.
const (
	EndpointTranscribe   = "transcribe"
	EndpointAnalyze      = "analyze-intent"
	EndpointExplain      = "explain"
	EndpointPlan         = "plan-trip"
	EndpointSynthesize   = "tts"
	EndpointGeneratePDF  = "generate-pdf"
	DefaultExportName    = "trip_itinerary.pdf"
	DefaultRecordingName = "recording.webm"
	DefaultRecordingMIME = "audio/webm"
)

// ErrorTranscript is emitted by audio capture when the upload fails.
// It is a placeholder, never conversation content.
const ErrorTranscript = "Error: Could not transcribe audio."

// Assistant replies used when the services do not provide their own wording.
const (
	ReplyConstraintsComplete = "I've captured your trip details! Ready to plan your itinerary?"
	ReplyNeedMoreDetail      = "I've noted that. Could you tell me more about your trip, like when you're planning to go or how long you'll stay?"
	ReplyAnalyzeFailed       = "Sorry, I'm having trouble connecting to my brain right now. Please try again in a moment."
	ReplyExplainFailed       = "I'm sorry, I couldn't find an answer to that right now. Could you ask me in a different way?"
	ReplyPlanning            = "Great! Let me create your personalized itinerary..."
	ReplyPlanReady           = "Your itinerary is ready! Check it out on the right."
	ReplyPlanFailed          = "Sorry, I had trouble creating your itinerary. Please try again."
)

// Presentation defaults. They are never written into a draft.
const (
	DefaultTravelersCount = 1
	DefaultPace           = "moderate"
)

/*
Package ports defines the driven ports (interfaces) of the trip assistant.

These interfaces decouple the orchestrator and the speech and capture pipelines
from the concrete services, devices and stores behind them.

# Key Interfaces

  - ConversationBackend: intent extraction, question answering, planning and PDF rendering.
  - Transcriber / Synthesizer: remote speech services.
  - Microphone / AudioPlayer / LocalVoice: audio devices and on-device synthesis.
  - AudioCache: storage for synthesized replies.
  - DocumentSink: where exported documents are surfaced for download.
*/
package ports

/*
Package domain contains the core domain models of the trip-planning conversation.

It defines the entities shared by the orchestrator, the speech and capture
pipelines, and every adapter. This package is kept pure and free of I/O so it can
be reused by any front-end (CLI, HTTP, MCP).

# Key Entities

  - Utterance: one unit of user input, stamped with a monotonically increasing sequence.
  - Turn: an entry in the append-only conversation log.
  - Constraints: the accumulating trip draft returned by the intent service.
  - Itinerary: the immutable plan returned by the planning service.
  - State: the snapshot of the whole conversation handed to read-only consumers.
*/
package domain

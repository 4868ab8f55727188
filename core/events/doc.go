// Package events defines the typed events the orchestrator reports to its
// host.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - user_input.*
//   - capture.*
//   - assistant_response.*
//   - assistant_playback.*
//   - turn_state.*
//   - quiz.*
//
// Semantics used across the package:
//
//   - Segment: append-only text piece emitted in arrival order.
//   - Updated: mutable point-in-time snapshot that can change over time.
//   - Final: terminal immutable text for the current utterance.
//   - Ended: lifecycle boundary, reported exactly once per started playback.
//
// user_input events
//
//   - UserTranscriptInterimUpdated (user_input.transcript_interim_updated):
//     finalized fragments of the current utterance followed by interim text.
//   - UserTranscriptSegment (user_input.transcript_segment): finalized
//     recognizer fragment.
//   - UserUtteranceFinal (user_input.utterance_final): utterance delimited by
//     the quiet period.
//   - UserMessageSubmitted (user_input.message_submitted): text sent to the
//     tutor.
//
// capture events
//
//   - CaptureStarted, CaptureStopped: recognizer session lifecycle.
//   - CaptureRestarted (capture.restarted): automatic restart after the
//     recognizer ended on its own.
//   - CaptureFailed (capture.failed): fatal capture error, e.g. denied
//     microphone permission.
//
// assistant_response events
//
//   - AssistantSessionStarted (assistant_response.session_started).
//   - AssistantMessage (assistant_response.message): chat history append.
//   - AssistantMessageAmended (assistant_response.message_amended).
//   - AssistantBadgesEarned (assistant_response.badges_earned).
//   - AssistantResponseFailed (assistant_response.failed): no reply after
//     retries; a fallback message was added instead.
//
// assistant_playback events
//
//   - AssistantPlaybackStarted (assistant_playback.started).
//   - AssistantPlaybackWordBoundary (assistant_playback.word_boundary):
//     character index into the spoken text, -1 when done.
//   - AssistantPlaybackEnded (assistant_playback.ended).
//
// turn_state events
//
//   - TurnStateChanged (turn_state.changed): idle, listening or speaking.
//
// quiz events
//
//   - QuizOpened, QuizCommand, QuizSubmitted, QuizClosed, QuizUnavailable.
package events

package jobs

const (
	TaskRunBatch = "batch:run"
)

// RunBatchPayload is the /domany expansion request handed to the worker.
// The worker consumes these with concurrency 1: the render engine holds a
// single shared model instance, so parallel batches would only queue.
type RunBatchPayload struct {
	BatchID    string   `json:"batch_id"` // ulid; worker generates if empty
	ChatID     int64    `json:"chat_id"`  // reporting chat for the progress message
	ThreadID   int      `json:"thread_id"`
	ImageNames []string `json:"image_names"`
	VideoNames []string `json:"video_names"`
}

package stores

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/vidx/internal/api"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/services"
	"github.com/desertthunder/vidx/internal/shared"
)

// Uploader streams a video; [services.VideoService] implements it.
type Uploader interface {
	Upload(ctx context.Context, u services.VideoUpload, onProgress api.ProgressFunc) (*models.Video, error)
}

// StatusChecker polls processing state; [services.VideoService] implements it.
type StatusChecker interface {
	Status(ctx context.Context, id string) (*models.ProcessingStatus, error)
}

// UploadStore tracks upload tasks from the first byte to server-side processing.
//
// A task moves uploading → processing when the body is fully sent, then processing → completed
// on [UploadStore.Confirm] or error on [UploadStore.Fail]. A failed upload keeps the progress it reached.
type UploadStore struct {
	subscribers
	uploader Uploader
	logger   *log.Logger
	now      func() time.Time

	mu    sync.Mutex
	tasks map[string]*models.UploadTask
}

func NewUploadStore(uploader Uploader, logger *log.Logger) *UploadStore {
	if logger == nil {
		logger = shared.NewDiscardLogger()
	}
	return &UploadStore{
		uploader: uploader,
		logger:   shared.WithLogger(logger, "store", "uploads"),
		now:      time.Now,
		tasks:    make(map[string]*models.UploadTask),
	}
}

// Task returns a copy of one task.
func (s *UploadStore) Task(id string) (models.UploadTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return models.UploadTask{}, false
	}
	return *t, true
}

// Active lists every task that has not been removed, oldest first.
func (s *UploadStore) Active() []models.UploadTask {
	s.mu.Lock()
	out := make([]models.UploadTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

func (s *UploadStore) update(id string, fn func(*models.UploadTask)) bool {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if ok {
		fn(t)
		t.UpdatedAt = s.now()
	}
	s.mu.Unlock()
	if ok {
		s.notify()
	}
	return ok
}

// Start creates a task for u and streams it, blocking until the network phase ends.
// The returned task is in processing on success and error otherwise.
func (s *UploadStore) Start(ctx context.Context, u services.VideoUpload) (models.UploadTask, error) {
	now := s.now()
	task := &models.UploadTask{
		ID:        shared.GenerateID(),
		FileName:  u.FileName,
		Size:      u.Size,
		Title:     u.Metadata.Title,
		Status:    models.UploadUploading,
		StartedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.tasks[task.ID] = task
	s.mu.Unlock()
	s.notify()

	v, err := s.uploader.Upload(ctx, u, func(pct float64) {
		s.update(task.ID, func(t *models.UploadTask) {
			if t.Status == models.UploadUploading && pct > t.Progress {
				t.Progress = pct
			}
		})
	})

	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			msg = "upload cancelled"
		}
		s.update(task.ID, func(t *models.UploadTask) {
			t.Status, t.Error = models.UploadError, msg
		})
		out, _ := s.Task(task.ID)
		return out, err
	}

	s.update(task.ID, func(t *models.UploadTask) {
		t.Progress = 100
		t.Status = models.UploadProcessing
		t.VideoID = v.ID
		if v.Status == models.VideoReady {
			t.Status = models.UploadCompleted
		}
	})
	out, _ := s.Task(task.ID)
	return out, nil
}

func (s *UploadStore) byVideo(videoID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tasks {
		if t.VideoID == videoID {
			return id
		}
	}
	return ""
}

// Confirm marks the task for videoID completed once the server reports it processed.
func (s *UploadStore) Confirm(videoID string) error {
	id := s.byVideo(videoID)
	if id == "" {
		return shared.ErrUploadNotFound
	}
	var err error
	s.update(id, func(t *models.UploadTask) {
		if t.Status != models.UploadProcessing && t.Status != models.UploadCompleted {
			err = shared.ErrInvalidTransition
			return
		}
		t.Status, t.Progress = models.UploadCompleted, 100
	})
	return err
}

// Fail marks the task for videoID failed with reason, keeping its progress.
func (s *UploadStore) Fail(videoID, reason string) error {
	id := s.byVideo(videoID)
	if id == "" {
		return shared.ErrUploadNotFound
	}
	if reason == "" {
		reason = "processing failed"
	}
	s.update(id, func(t *models.UploadTask) {
		t.Status, t.Error = models.UploadError, reason
	})
	return nil
}

// Remove drops a task from the active uploads.
func (s *UploadStore) Remove(id string) error {
	s.mu.Lock()
	_, ok := s.tasks[id]
	delete(s.tasks, id)
	s.mu.Unlock()
	if !ok {
		return shared.ErrUploadNotFound
	}
	s.notify()
	return nil
}

// ClearFinished removes every completed or failed task.
func (s *UploadStore) ClearFinished() int {
	s.mu.Lock()
	n := 0
	for id, t := range s.tasks {
		if t.Terminal() {
			delete(s.tasks, id)
			n++
		}
	}
	s.mu.Unlock()
	if n > 0 {
		s.notify()
	}
	return n
}

// WaitProcessed polls the server every interval until the task's video is ready or failed.
// It is the fallback when no realtime listener is running.
func (s *UploadStore) WaitProcessed(ctx context.Context, checker StatusChecker, taskID string, interval time.Duration) (models.UploadTask, error) {
	task, ok := s.Task(taskID)
	if !ok {
		return models.UploadTask{}, shared.ErrUploadNotFound
	}
	if task.Terminal() {
		return task, nil
	}
	if task.VideoID == "" {
		return task, shared.ErrInvalidTransition
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		st, err := checker.Status(ctx, task.VideoID)
		if err != nil && !api.IsKind(err, api.KindNetwork) && !api.IsKind(err, api.KindServer) {
			return task, err
		}
		if err == nil {
			switch st.Status {
			case models.VideoReady:
				if err := s.Confirm(task.VideoID); err != nil {
					s.logger.Warn("failed to confirm processed upload", "task", taskID, "video", task.VideoID, "err", err)
				}
			case models.VideoFailed:
				if err := s.Fail(task.VideoID, st.Error); err != nil {
					s.logger.Warn("failed to mark upload failed", "task", taskID, "video", task.VideoID, "err", err)
				}
			}
		}
		t, ok := s.Task(taskID)
		if !ok {
			return t, shared.ErrUploadNotFound
		}
		if t.Terminal() {
			return t, nil
		}

		select {
		case <-ctx.Done():
			t, _ := s.Task(taskID)
			return t, ctx.Err()
		case <-ticker.C:
		}
	}
}

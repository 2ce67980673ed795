package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/theimaginaryfoundation/transcribe-o-bot/transcription"
	"github.com/theimaginaryfoundation/transcribe-o-bot/transcription/archive"
	"github.com/theimaginaryfoundation/transcribe-o-bot/transcription/fileutils"
)

var errSessionNotFound = errors.New("session not found")

var errArchiveDisabled = fiber.NewError(fiber.StatusNotImplemented, "archive is not configured")

// uploadOverhead is the multipart framing allowed on top of the media cap.
const uploadOverhead = 1 << 20

type server struct {
	reg   *registry
	store *archive.Store // nil disables the archive routes

	// baseCtx parents every acquisition so shutdown cancels them.
	baseCtx context.Context
	// progressEvery is the interval between progress frames on the WebSocket.
	progressEvery time.Duration
	logf          func(format string, args ...any)
}

type serverOptions struct {
	accessLog io.Writer // nil disables the access log
}

func newApp(s *server, opts serverOptions) *fiber.App {
	if s.baseCtx == nil {
		s.baseCtx = context.Background()
	}
	if s.logf == nil {
		s.logf = log.Printf
	}
	if s.progressEvery <= 0 {
		s.progressEvery = transcription.TickInterval
	}

	app := fiber.New(fiber.Config{
		AppName:               "transcribe-o-bot",
		BodyLimit:             transcription.MaxMediaBytes + uploadOverhead,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(recover.New())
	if opts.accessLog != nil {
		app.Use(logger.New(logger.Config{Output: opts.accessLog}))
	}

	app.Post("/sessions", s.createSession)
	app.Get("/sessions/:id", s.getSession)
	app.Delete("/sessions/:id", s.deleteSession)
	app.Post("/sessions/:id/media", s.acquireMedia)
	app.Post("/sessions/:id/url", s.acquireURL)
	app.Post("/sessions/:id/reset", s.resetSession)
	app.Get("/sessions/:id/views/:kind", s.getView)
	app.Post("/sessions/:id/chat", s.ask)
	app.Put("/sessions/:id/text", s.editText)
	app.Post("/sessions/:id/notes", s.addNote)
	app.Put("/sessions/:id/notes/:noteID", s.updateNote)
	app.Delete("/sessions/:id/notes/:noteID", s.deleteNote)
	app.Get("/sessions/:id/export/:format", s.export)
	app.Post("/sessions/:id/archive", s.archiveSession)

	app.Get("/sessions/:id/progress", s.requireUpgrade, websocket.New(s.streamProgress))

	app.Get("/archive", s.listArchive)
	app.Get("/archive/:id", s.getArchived)
	app.Delete("/archive/:id", s.deleteArchived)

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, transcription.ErrInputRejected), errors.Is(err, transcription.ErrNoInput):
		return fiber.StatusBadRequest
	case errors.Is(err, errSessionNotFound), errors.Is(err, transcription.ErrNoteNotFound), errors.Is(err, archive.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, transcription.ErrSessionBusy), errors.Is(err, transcription.ErrNotCompleted), errors.Is(err, transcription.ErrStaleResult):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *server) session(c *fiber.Ctx) (*transcription.Session, error) {
	sess, ok := s.reg.get(c.Params("id"))
	if !ok {
		return nil, errSessionNotFound
	}
	return sess, nil
}

func (s *server) requireUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if _, err := s.session(c); err != nil {
		return err
	}
	return c.Next()
}

func (s *server) createSession(c *fiber.Ctx) error {
	sess := s.reg.create()
	return c.Status(fiber.StatusCreated).JSON(sess.Snapshot())
}

func (s *server) getSession(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	return c.JSON(sess.Snapshot())
}

func (s *server) deleteSession(c *fiber.Ctx) error {
	if !s.reg.remove(c.Params("id")) {
		return errSessionNotFound
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *server) acquireMedia(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return &transcription.InputError{Reason: "multipart field \"file\" is required"}
	}
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	p, err := transcription.NormalizeMedia(fh.Filename, f)
	if err != nil {
		return err
	}
	return s.startAcquire(c, transcription.Input{Media: &p})
}

type urlRequest struct {
	URL string `json:"url"`
}

func (s *server) acquireURL(c *fiber.Ctx) error {
	var req urlRequest
	if err := c.BodyParser(&req); err != nil {
		return &transcription.InputError{Reason: "invalid JSON"}
	}
	ref, err := transcription.ParseVideoURL(req.URL)
	if err != nil {
		return err
	}
	return s.startAcquire(c, transcription.Input{URL: ref.URL})
}

func (s *server) startAcquire(c *fiber.Ctx, in transcription.Input) error {
	id := c.Params("id")
	done, err := s.reg.start(s.baseCtx, id, in)
	if err != nil {
		return err
	}
	go func() {
		err := <-done
		switch {
		case err == nil:
			s.logf("session=%s acquisition completed", id)
		case errors.Is(err, transcription.ErrStaleResult):
			s.logf("session=%s acquisition discarded after reset", id)
		default:
			s.logf("session=%s acquisition failed: %v", id, err)
		}
	}()

	sess, err := s.session(c)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(sess.Snapshot())
}

func (s *server) resetSession(c *fiber.Ctx) error {
	sess, ok := s.reg.reset(c.Params("id"))
	if !ok {
		return errSessionNotFound
	}
	return c.JSON(sess.Snapshot())
}

func (s *server) getView(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	kind, err := transcription.ParseViewKind(c.Params("kind"))
	if err != nil {
		return err
	}
	if _, err := sess.View(c.UserContext(), kind); err != nil {
		return err
	}
	v := sess.Snapshot().Views[kind]
	return c.JSON(fiber.Map{"kind": kind, "state": v.State, "text": v.Text})
}

type chatRequest struct {
	Question string `json:"question"`
}

func (s *server) ask(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return &transcription.InputError{Reason: "invalid JSON"}
	}
	answer, err := sess.Ask(c.UserContext(), req.Question)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"answer": answer, "messages": sess.Snapshot().Chat})
}

type textRequest struct {
	Text string `json:"text"`
}

func (s *server) editText(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	var req textRequest
	if err := c.BodyParser(&req); err != nil {
		return &transcription.InputError{Reason: "invalid JSON"}
	}
	if err := sess.EditText(req.Text); err != nil {
		return err
	}
	return c.JSON(sess.Snapshot())
}

type noteRequest struct {
	TimestampSeconds float64 `json:"timestamp_seconds"`
	Text             string  `json:"text"`
}

func (s *server) addNote(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	var req noteRequest
	if err := c.BodyParser(&req); err != nil {
		return &transcription.InputError{Reason: "invalid JSON"}
	}
	n, err := sess.AddNote(req.TimestampSeconds, req.Text)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(n)
}

func (s *server) updateNote(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	var req noteRequest
	if err := c.BodyParser(&req); err != nil {
		return &transcription.InputError{Reason: "invalid JSON"}
	}
	n, err := sess.UpdateNote(c.Params("noteID"), req.Text)
	if err != nil {
		return err
	}
	return c.JSON(n)
}

func (s *server) deleteNote(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	if err := sess.DeleteNote(c.Params("noteID")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *server) export(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	f, err := transcription.ParseExportFormat(c.Params("format"))
	if err != nil {
		return err
	}
	snap := sess.Snapshot()
	b, err := transcription.Export(snap, f)
	if err != nil {
		return err
	}
	name := fileutils.SanitizeFilename(snap.Transcript.Metadata.Title) + f.Extension()
	c.Attachment(name)
	c.Set(fiber.HeaderContentType, f.ContentType())
	return c.Send(b)
}

func (s *server) archiveSession(c *fiber.Ctx) error {
	if s.store == nil {
		return errArchiveDisabled
	}
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	rec, err := s.store.SaveSnapshot(c.UserContext(), sess.Snapshot())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

func (s *server) listArchive(c *fiber.Ctx) error {
	if s.store == nil {
		return errArchiveDisabled
	}
	list, err := s.store.List(c.UserContext(), c.QueryInt("limit", 50))
	if err != nil {
		return err
	}
	if list == nil {
		list = []archive.Summary{}
	}
	return c.JSON(list)
}

func (s *server) getArchived(c *fiber.Ctx) error {
	if s.store == nil {
		return errArchiveDisabled
	}
	rec, err := s.store.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

func (s *server) deleteArchived(c *fiber.Ctx) error {
	if s.store == nil {
		return errArchiveDisabled
	}
	if err := s.store.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// progressFrame is one message on the progress WebSocket.
type progressFrame struct {
	Status transcription.Status `json:"status"`
	Error  string               `json:"error,omitempty"`
	transcription.Progress
}

func frameFor(snap transcription.Snapshot) progressFrame {
	return progressFrame{Status: snap.Status, Error: snap.Error, Progress: snap.Progress}
}

// streamProgress sends a frame every progressEvery while the session is processing, then a final
// frame with the terminal status, and closes with a close frame.
func (s *server) streamProgress(ws *websocket.Conn) {
	defer ws.Close()
	id := ws.Params("id")

	t := time.NewTicker(s.progressEvery)
	defer t.Stop()
	for {
		sess, ok := s.reg.get(id)
		if !ok {
			s.closeStream(ws, id, websocket.CloseNormalClosure, errSessionNotFound.Error())
			return
		}
		frame := frameFor(sess.Snapshot())
		if err := ws.WriteJSON(frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logf("session=%s progress write: %v", id, err)
			}
			return
		}
		if frame.Status != transcription.StatusProcessing {
			s.closeStream(ws, id, websocket.CloseNormalClosure, "")
			return
		}
		select {
		case <-t.C:
		case <-s.baseCtx.Done():
			s.closeStream(ws, id, websocket.CloseGoingAway, "server shutting down")
			return
		}
	}
}

func (s *server) closeStream(ws *websocket.Conn, id string, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	if err := ws.WriteMessage(websocket.CloseMessage, msg); err != nil {
		s.logf("session=%s progress close: %v", id, err)
	}
}

package recognizer

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// fakeStream replays scripted responses and records requests.
type fakeStream struct {
	grpc.ClientStream

	mu        sync.Mutex
	requests  []*speechpb.StreamingRecognizeRequest
	responses []*speechpb.StreamingRecognizeResponse
	finalErr  error
	ctx       context.Context
}

func (s *fakeStream) Send(req *speechpb.StreamingRecognizeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return nil
}

func (s *fakeStream) CloseSend() error { return nil }

func (s *fakeStream) Recv() (*speechpb.StreamingRecognizeResponse, error) {
	s.mu.Lock()
	if len(s.responses) > 0 {
		resp := s.responses[0]
		s.responses = s.responses[1:]
		s.mu.Unlock()
		return resp, nil
	}
	err := s.finalErr
	s.mu.Unlock()
	if err == nil {
		<-s.ctx.Done()
		return nil, s.ctx.Err()
	}
	return nil, err
}

func (s *fakeStream) firstRequest() *speechpb.StreamingRecognizeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[0]
}

type fakeSpeech struct {
	stream  *fakeStream
	openErr error
	closed  bool
}

func (f *fakeSpeech) StreamingRecognize(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.stream.ctx = ctx
	return f.stream, nil
}

func (f *fakeSpeech) Close() error {
	f.closed = true
	return nil
}

func interim(text string) *speechpb.StreamingRecognizeResponse {
	return &speechpb.StreamingRecognizeResponse{
		Results: []*speechpb.StreamingRecognitionResult{{
			Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: text}},
		}},
	}
}

func final(texts ...string) *speechpb.StreamingRecognizeResponse {
	var alts []*speechpb.SpeechRecognitionAlternative
	for _, t := range texts {
		alts = append(alts, &speechpb.SpeechRecognitionAlternative{Transcript: t})
	}
	return &speechpb.StreamingRecognizeResponse{
		Results: []*speechpb.StreamingRecognitionResult{{Alternatives: alts, IsFinal: true}},
	}
}

func TestGoogle_ImplementsEngine(t *testing.T) {
	var _ Engine = (*Google)(nil)
}

func TestGoogle_SingleUtterance(t *testing.T) {
	stream := &fakeStream{
		responses: []*speechpb.StreamingRecognizeResponse{
			interim("patient"),
			{SpeechEventType: speechpb.StreamingRecognizeResponse_END_OF_SINGLE_UTTERANCE},
			final("BP is stable", "bp is stable"),
		},
	}
	client := &fakeSpeech{stream: stream}
	g := newGoogle(GoogleConfig{Model: "medical_dictation"}, client, &fakeSource{frames: [][]byte{{0, 1}}})
	l := newRecordingListener()
	g.SetListener(l)

	cfg := DefaultConfig()
	if err := g.Start(context.Background(), cfg); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	events, ok := l.until("results", 2*time.Second)
	if !ok {
		t.Fatalf("no results, got %+v", events)
	}
	var kinds []string
	for _, ev := range events {
		kinds = append(kinds, ev.kind)
	}
	want := []string{"ready", "begin", "partial", "end", "results"}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("events = %v, want %v", kinds, want)
		}
	}
	if got := events[len(events)-1].candidates; len(got) != 2 || got[0] != "BP is stable" {
		t.Errorf("candidates = %v", got)
	}

	first := stream.firstRequest()
	sc := first.GetStreamingConfig()
	if sc == nil {
		t.Fatal("first request should carry the streaming config")
	}
	if !sc.GetSingleUtterance() || !sc.GetInterimResults() {
		t.Errorf("single utterance and interim results must be set: %+v", sc)
	}
	if sc.GetConfig().GetLanguageCode() != "en-US" || sc.GetConfig().GetModel() != "medical_dictation" {
		t.Errorf("unexpected recognition config: %+v", sc.GetConfig())
	}
	if !sc.GetConfig().GetEnableAutomaticPunctuation() {
		t.Error("formatting should enable automatic punctuation")
	}

	if err := g.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if !client.closed {
		t.Error("Close should release the speech client")
	}
}

func TestGoogle_EndWithoutResult(t *testing.T) {
	stream := &fakeStream{finalErr: io.EOF}
	g := newGoogle(GoogleConfig{}, &fakeSpeech{stream: stream}, &fakeSource{})
	l := newRecordingListener()
	g.SetListener(l)
	defer g.Close()

	if err := g.Start(context.Background(), DefaultConfig()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	events, ok := l.until("error", 2*time.Second)
	if !ok {
		t.Fatalf("no error, got %+v", events)
	}
	if code := events[len(events)-1].code; code != ErrNoMatch {
		t.Errorf("code = %v, want no_match", code)
	}
}

func TestGoogle_OpenFailure(t *testing.T) {
	g := newGoogle(GoogleConfig{}, &fakeSpeech{openErr: status.Error(codes.Unavailable, "down")}, &fakeSource{})
	l := newRecordingListener()
	g.SetListener(l)
	defer g.Close()

	if err := g.Start(context.Background(), DefaultConfig()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	ev, ok := l.next(2 * time.Second)
	if !ok || ev.kind != "error" || ev.code != ErrNetwork {
		t.Errorf("got %+v, want network error", ev)
	}
}

func TestGrpcErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCode
	}{
		{status.Error(codes.Unavailable, ""), ErrNetwork},
		{status.Error(codes.DeadlineExceeded, ""), ErrNetworkTimeout},
		{context.DeadlineExceeded, ErrNetworkTimeout},
		{status.Error(codes.Internal, ""), ErrServer},
		{status.Error(codes.PermissionDenied, ""), ErrInsufficientPermissions},
		{status.Error(codes.Unauthenticated, ""), ErrInsufficientPermissions},
		{status.Error(codes.ResourceExhausted, ""), ErrTooManyRequests},
		{status.Error(codes.InvalidArgument, ""), ErrClient},
		{status.Error(codes.OutOfRange, ""), ErrSpeechTimeout},
		{errors.New("plain"), ErrServer},
	}
	for _, tc := range tests {
		if got := grpcErrorCode(tc.err); got != tc.want {
			t.Errorf("grpcErrorCode(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

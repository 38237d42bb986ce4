package recognizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/andlab/doctas/internal/logging"
	"github.com/andlab/doctas/internal/recording"
)

// GoogleConfig configures the Cloud Speech-to-Text backend.
type GoogleConfig struct {
	CredentialsFile string // empty uses application default credentials
	Model           string // e.g. "latest_long", "medical_dictation"
	SampleRate      int
}

// speechStreamer is the slice of the Cloud Speech client the engine needs.
type speechStreamer interface {
	StreamingRecognize(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error)
	Close() error
}

// Google runs one StreamingRecognize call per session with single_utterance
// set, so the service ends the stream after the first utterance.
type Google struct {
	cfg    GoogleConfig
	client speechStreamer
	source recording.Source
	logger zerolog.Logger

	d    dispatcher
	runs runs
}

func NewGoogle(ctx context.Context, cfg GoogleConfig, source recording.Source) (*Google, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return newGoogle(cfg, cloudSpeech{client}, source), nil
}

type cloudSpeech struct {
	*speech.Client
}

func (c cloudSpeech) StreamingRecognize(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error) {
	return c.Client.StreamingRecognize(ctx)
}

func newGoogle(cfg GoogleConfig, client speechStreamer, source recording.Source) *Google {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	return &Google{
		cfg:    cfg,
		client: client,
		source: source,
		logger: logging.WithComponent("recognizer.google"),
	}
}

func (g *Google) SetListener(l Listener) { g.d.set(l) }

func (g *Google) Start(ctx context.Context, cfg Config) error {
	cur, prev, err := g.runs.begin(ctx, &g.d)
	if err != nil {
		return err
	}
	go g.session(cur, prev, cfg)
	return nil
}

func (g *Google) Stop() error {
	g.runs.stop()
	return nil
}

func (g *Google) Close() error {
	if r := g.runs.close(); r != nil {
		<-r.done
	}
	g.d.set(nil)
	return g.client.Close()
}

func (g *Google) session(r *run, prev *run, cfg Config) {
	defer close(r.done)
	defer r.cancel()
	if prev != nil {
		<-prev.done
	}
	if r.ctx.Err() != nil {
		return
	}

	stream, err := g.client.StreamingRecognize(r.ctx)
	if err != nil {
		if r.ctx.Err() == nil {
			g.logger.Warn().Err(err).Msg("open stream failed")
			r.fail(grpcErrorCode(err))
		}
		return
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: g.streamingConfig(cfg),
		},
	}); err != nil {
		if r.ctx.Err() == nil {
			r.fail(grpcErrorCode(err))
		}
		return
	}
	r.emit(func(l Listener) { l.OnReadyForSpeech() })

	audioDone := make(chan struct{})
	audioCtx, stopAudio := context.WithCancel(r.ctx)
	defer func() {
		stopAudio()
		<-audioDone
	}()
	go func() {
		defer close(audioDone)
		err := pumpAudio(audioCtx, g.source, func(b []byte) error {
			return stream.Send(&speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: b},
			})
		})
		if err != nil && audioCtx.Err() == nil && !errors.Is(err, io.EOF) {
			g.logger.Warn().Err(err).Msg("audio capture failed")
			r.fail(ErrAudio)
			r.cancel()
			return
		}
		_ = stream.CloseSend()
	}()

	speaking := false
	for {
		resp, err := stream.Recv()
		if r.ctx.Err() != nil {
			return
		}
		if errors.Is(err, io.EOF) {
			// stream ended without a final result
			r.fail(ErrNoMatch)
			return
		}
		if err != nil {
			g.logger.Warn().Err(err).Msg("recognition failed")
			r.fail(grpcErrorCode(err))
			return
		}

		if resp.GetSpeechEventType() == speechpb.StreamingRecognizeResponse_END_OF_SINGLE_UTTERANCE {
			stopAudio()
			r.emit(func(l Listener) { l.OnEndOfSpeech() })
		}

		var partial []string
		for _, result := range resp.GetResults() {
			alts := alternatives(result)
			if len(alts) == 0 {
				continue
			}
			if !speaking {
				speaking = true
				r.emit(func(l Listener) { l.OnBeginningOfSpeech() })
			}
			if result.GetIsFinal() {
				r.emit(func(l Listener) { l.OnResults(alts) })
				return
			}
			partial = append(partial, alts[0])
		}
		if len(partial) > 0 {
			text := strings.TrimSpace(strings.Join(partial, ""))
			r.emit(func(l Listener) { l.OnPartialResults([]string{text}) })
		}
	}
}

func (g *Google) streamingConfig(cfg Config) *speechpb.StreamingRecognitionConfig {
	maxAlts := cfg.MaxAlternatives
	if maxAlts <= 0 {
		maxAlts = 1
	}
	return &speechpb.StreamingRecognitionConfig{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            int32(g.cfg.SampleRate),
			LanguageCode:               cfg.Language,
			MaxAlternatives:            int32(maxAlts),
			EnableAutomaticPunctuation: cfg.Formatting,
			Model:                      g.cfg.Model,
		},
		SingleUtterance: true,
		InterimResults:  cfg.PartialResults,
	}
}

func alternatives(result *speechpb.StreamingRecognitionResult) []string {
	var out []string
	for _, alt := range result.GetAlternatives() {
		if t := strings.TrimSpace(alt.GetTranscript()); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// grpcErrorCode maps a Cloud Speech failure onto a recognizer ErrorCode.
func grpcErrorCode(err error) ErrorCode {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrNetworkTimeout
	}
	switch status.Code(err) {
	case codes.Unavailable:
		return ErrNetwork
	case codes.DeadlineExceeded:
		return ErrNetworkTimeout
	case codes.Internal, codes.Unknown, codes.DataLoss:
		return ErrServer
	case codes.PermissionDenied, codes.Unauthenticated:
		return ErrInsufficientPermissions
	case codes.ResourceExhausted:
		return ErrTooManyRequests
	case codes.InvalidArgument:
		return ErrClient
	case codes.OutOfRange:
		return ErrSpeechTimeout
	case codes.Aborted:
		return ErrServerDisconnected
	default:
		return ErrClient
	}
}

package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/telegrab/internal/types"
	"github.com/tanq16/telegrab/internal/utils"
)

// Strategy decides per verified artifact between direct inline delivery and
// the fallback host. Exactly one outcome message reaches the user per job.
type Strategy struct {
	notifier      types.Notifier
	uploader      types.Uploader // nil disables fallback delivery
	inlineLimit   int64
	uploadTimeout time.Duration // zero means none
}

func New(notifier types.Notifier, uploader types.Uploader, inlineLimit int64, uploadTimeout time.Duration) *Strategy {
	return &Strategy{
		notifier:      notifier,
		uploader:      uploader,
		inlineLimit:   inlineLimit,
		uploadTimeout: uploadTimeout,
	}
}

// Deliver sends the artifact inline when it fits under the limit, otherwise
// through the fallback host. Inline failures are terminal: the size test
// already decided direct delivery was appropriate, so there is no retry and
// no escalation.
func (s *Strategy) Deliver(ctx context.Context, job *types.Job, artifact *types.Artifact) error {
	if artifact.SizeBytes <= s.inlineLimit {
		return s.deliverInline(job, artifact)
	}
	return s.deliverFallback(ctx, job, artifact)
}

func (s *Strategy) deliverInline(job *types.Job, artifact *types.Artifact) error {
	kind := types.MediaVideo
	if job.IsAudioOnly {
		kind = types.MediaAudio
	}
	caption := fmt.Sprintf("Downloaded: %s", artifact.Title)
	err := s.notifier.SendMedia(job.ChatID, job.ReplyToID, kind, artifact.LocalPath, caption)
	if err != nil {
		log.Error().Str("op", "delivery/inline").Err(err).Msgf("inline delivery failed for job %s", job.ID)
		s.notifier.SendText(job.ChatID, job.ReplyToID,
			fmt.Sprintf("Couldn't send %q through the chat (unsupported format or a transport error). Please try another format.", artifact.Title))
		return fmt.Errorf("inline delivery failed: %v", err)
	}
	log.Info().Str("op", "delivery/inline").Msgf("delivered %s inline (%s)", artifact.Title, utils.FormatBytes(uint64(artifact.SizeBytes)))
	return nil
}

func (s *Strategy) deliverFallback(ctx context.Context, job *types.Job, artifact *types.Artifact) error {
	size := utils.FormatBytes(uint64(artifact.SizeBytes))
	if s.uploader == nil {
		s.notifier.SendText(job.ChatID, job.ReplyToID,
			fmt.Sprintf("%q is too large to send directly (%s) and no fallback host is configured. You'll need to retrieve it from the source yourself.", artifact.Title, size))
		return fmt.Errorf("artifact over inline limit (%s) with no fallback host", size)
	}
	if s.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.uploadTimeout)
		defer cancel()
	}
	link, err := s.uploader.Upload(ctx, artifact.LocalPath)
	if err != nil {
		log.Error().Str("op", "delivery/fallback").Err(err).Msgf("fallback upload failed for job %s", job.ID)
		s.notifier.SendText(job.ChatID, job.ReplyToID,
			fmt.Sprintf("%q is too large to send directly (%s) and the fallback upload failed too. You'll need to retrieve it from the source yourself.", artifact.Title, size))
		return fmt.Errorf("fallback upload failed: %v", err)
	}
	s.notifier.SendText(job.ChatID, job.ReplyToID,
		fmt.Sprintf("%q is too large to send directly (%s). Download it here instead:\n%s", artifact.Title, size, link))
	log.Info().Str("op", "delivery/fallback").Msgf("delivered %s via fallback host", artifact.Title)
	return nil
}

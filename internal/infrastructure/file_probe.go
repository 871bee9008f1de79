package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/yourusername/mediahub-go/internal/domain"
	"go.uber.org/zap"
	"gopkg.in/vansante/go-ffprobe.v2"
)

// probeFunc defines the function signature used to execute ffprobe
type probeFunc func(ctx context.Context, path string, extraOpts ...string) (*ffprobe.ProbeData, error)

// FileProbe implements domain.FileProbe with os.Stat and ffprobe
type FileProbe struct {
	probe   probeFunc
	timeout time.Duration
	logger  *zap.Logger
}

// NewFileProbe creates a probe backed by the ffprobe binary on PATH
func NewFileProbe(logger *zap.Logger) *FileProbe {
	return &FileProbe{
		probe:   ffprobe.ProbeURL,
		timeout: 30 * time.Second,
		logger:  logger,
	}
}

// Exists reports whether path is an existing regular file
func (p *FileProbe) Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Metadata reads duration, resolution and codecs. A missing ffprobe binary is
// not fatal: an empty ProbeInfo is returned.
func (p *FileProbe) Metadata(ctx context.Context, path string) (*domain.ProbeInfo, error) {
	if ok, err := p.Exists(path); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("%s: %w", path, fs.ErrNotExist)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	data, err := p.probe(ctx, path)
	if err != nil {
		p.logger.Debug("ffprobe failed, continuing without technical metadata",
			zap.String("path", path),
			zap.Error(err))
		return &domain.ProbeInfo{}, nil
	}
	return buildProbeInfo(data), nil
}

func buildProbeInfo(data *ffprobe.ProbeData) *domain.ProbeInfo {
	info := &domain.ProbeInfo{}
	if data == nil || data.Format == nil {
		return info
	}
	info.DurationSeconds = int(data.Format.DurationSeconds)
	info.FormatName = data.Format.FormatName
	info.BitRate = data.Format.BitRate

	if video := data.FirstVideoStream(); video != nil {
		info.VideoCodec = pickCodecName(video)
		info.Width = video.Width
		info.Height = video.Height
	}
	if audio := data.FirstAudioStream(); audio != nil {
		info.AudioCodec = pickCodecName(audio)
	}
	return info
}

func pickCodecName(stream *ffprobe.Stream) string {
	if stream == nil {
		return ""
	}
	if stream.CodecName != "" {
		return stream.CodecName
	}
	return stream.CodecLongName
}

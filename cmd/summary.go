package main

import (
	"errors"

	"github.com/sells-group/imgfetch/internal/imagefetch"
)

// imageSummary is the printable description of a fetched image.
type imageSummary struct {
	URL         string `json:"url" yaml:"url"`
	Format      string `json:"format" yaml:"format"`
	Width       int    `json:"width" yaml:"width"`
	Height      int    `json:"height" yaml:"height"`
	Bytes       int    `json:"bytes" yaml:"bytes"`
	ContentType string `json:"content_type,omitempty" yaml:"content_type,omitempty"`
}

// errorSummary is the printable description of a failed fetch.
type errorSummary struct {
	Kind   string `json:"kind" yaml:"kind"`
	Status int    `json:"status,omitempty" yaml:"status,omitempty"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Error  string `json:"error" yaml:"error"`
}

func summarize(img *imagefetch.Image) imageSummary {
	return imageSummary{
		URL:         img.URL,
		Format:      img.Format,
		Width:       img.Width(),
		Height:      img.Height(),
		Bytes:       len(img.Data),
		ContentType: img.ContentType,
	}
}

func describeError(err error) errorSummary {
	s := errorSummary{
		Kind:   imagefetch.KindOf(err).String(),
		Status: imagefetch.StatusCode(err),
		Error:  err.Error(),
	}
	var fe *imagefetch.Error
	if errors.As(err, &fe) && fe.Kind == imagefetch.KindNetwork {
		s.Reason = string(fe.Reason)
	}
	return s
}

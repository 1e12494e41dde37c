package app

import (
	"fmt"

	"postit-mirror/internal/algorithms/mosaic"
	"postit-mirror/internal/config"
	"postit-mirror/internal/display"
	"postit-mirror/internal/frame"
	"postit-mirror/internal/gui/widgets"
	"postit-mirror/internal/logger"
	"postit-mirror/internal/opencv/safe"
	"postit-mirror/internal/overlay"
	"postit-mirror/internal/pipeline"
	"postit-mirror/internal/source"
)

// components is the frame path, independent of where frames are shown.
type components struct {
	format   frame.Format
	source   source.Adapter
	session  *pipeline.Session
	overlay  *overlay.Controller // nil when disabled
	settings []widgets.Setting
}

func buildComponents(cfg *config.Config, alloc safe.Allocator, dispatcher display.Dispatcher, sink display.Sink, log logger.Logger) (*components, error) {
	format, err := cfg.Format()
	if err != nil {
		return nil, err
	}

	src, err := newSource(cfg, format, log)
	if err != nil {
		return nil, err
	}

	accent, background, err := cfg.MosaicColors()
	if err != nil {
		return nil, err
	}
	tiles, err := mosaic.NewRenderer(cfg.MosaicGeometry(), accent, background, alloc)
	if err != nil {
		return nil, err
	}

	c := &components{format: format, source: src}

	var suppressor pipeline.Suppressor
	if cfg.Overlay.Enabled {
		oc, err := cfg.OverlaySettings()
		if err != nil {
			return nil, err
		}
		text, err := overlay.NewTextRenderer(format.Width, format.Height, oc, tiles, alloc)
		if err != nil {
			return nil, err
		}
		c.overlay, err = overlay.NewController(oc, text, dispatcher, sink, log)
		if err != nil {
			return nil, err
		}
		suppressor = c.overlay
	}

	opts := pipeline.Options{
		Format:        format,
		Morph:         cfg.MorphParams(format.Kind),
		Alloc:         alloc,
		Dispatcher:    dispatcher,
		Sink:          sink,
		Suppressor:    suppressor,
		Logger:        log,
		StatsInterval: cfg.Stats.LogInterval.Duration(),
	}
	if cfg.Mosaic.Enabled {
		opts.Mosaic = tiles
	}

	switch format.Kind {
	case frame.StreamDepth:
		if opts.Band, err = cfg.DepthBand(); err != nil {
			return nil, err
		}
		c.session, err = pipeline.NewDepthSession(src.Format(), opts)
	case frame.StreamColor:
		if opts.Background, err = cfg.BackgroundParams(); err != nil {
			return nil, err
		}
		c.session, err = pipeline.NewColorSession(src.Format(), opts)
	default:
		err = fmt.Errorf("unsupported stream kind %q", format.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	c.settings = describe(cfg, format)
	return c, nil
}

func newSource(cfg *config.Config, format frame.Format, log logger.Logger) (source.Adapter, error) {
	switch cfg.Stream.Source {
	case config.SourceCapture:
		return source.NewCapture(cfg.Stream.Device, format, log)
	case config.SourceSynthetic:
		return source.NewSynthetic(format, log)
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Stream.Source)
	}
}

func describe(cfg *config.Config, format frame.Format) []widgets.Setting {
	settings := []widgets.Setting{
		{Name: "Stream", Value: format.String()},
		{Name: "Source", Value: cfg.Stream.Source},
	}

	if format.Kind == frame.StreamDepth {
		if band, err := cfg.DepthBand(); err == nil {
			settings = append(settings, widgets.Setting{Name: "Valid depth", Value: band.String()})
		}
	} else {
		settings = append(settings, widgets.Setting{
			Name: "Background",
			Value: fmt.Sprintf("KNN history %d, threshold %.0f, %s",
				cfg.Color.History, cfg.Color.DistThreshold, cfg.Color.Output),
		})
	}

	m := cfg.MorphParams(format.Kind)
	settings = append(settings,
		widgets.Setting{Name: "Morphology", Value: fmt.Sprintf("kernel %d, close %t, erode %dx", m.KernelSize, m.Close, m.ErodeIterations)},
		widgets.Setting{Name: "Mosaic", Value: fmt.Sprintf("%t, cell %d, fill %d, %s", cfg.Mosaic.Enabled, cfg.Mosaic.Cell, cfg.Mosaic.Fill, cfg.Mosaic.Accent)},
		widgets.Setting{Name: "Overlay", Value: fmt.Sprintf("%t, every %s", cfg.Overlay.Enabled, cfg.Overlay.Interval)},
	)
	return settings
}

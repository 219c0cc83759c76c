package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smazurov/camrelay/internal/camera"
)

// CreateSnapshotCmd creates the snapshot command.
func CreateSnapshotCmd() *cobra.Command {
	var flags sourceFlags
	var output string
	var width, height, quality int

	cmd := &cobra.Command{
		Use:   "snapshot [camera-id]",
		Short: "Save one frame from a camera as JPEG",
		Long:  `Opens the camera through ffmpeg, takes the first decoded frame and writes it as a JPEG file.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			flags.initLogging()

			cfg, err := flags.loadCamera(args[0])
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(c.Context(), flags.timeout)
			defer cancel()

			enc := camera.NewJPEGEncoder(cfg, width, height, quality)
			data, err := snapshot(ctx, flags.source(), enc, cfg)
			if err != nil {
				return err
			}

			if output == "-" {
				_, err = c.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(c.ErrOrStderr(), "wrote %s (%d bytes)\n", output, len(data))
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "snapshot.jpg", "Output file, - for stdout")
	cmd.Flags().IntVar(&width, "width", camera.DefaultWidth, "Maximum width, 0 keeps the camera size")
	cmd.Flags().IntVar(&height, "height", camera.DefaultHeight, "Maximum height, 0 keeps the camera size")
	cmd.Flags().IntVar(&quality, "quality", camera.DefaultQuality, "JPEG quality (1-100)")
	return cmd
}

func snapshot(ctx context.Context, src camera.Source, enc camera.Encoder, cfg camera.Config) ([]byte, error) {
	h, err := src.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = h.Close() }()

	img, err := h.ReadFrame(ctx)
	if err != nil {
		return nil, err
	}
	return enc.Encode(img)
}

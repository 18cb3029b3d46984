package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/doeshing/replybot/internal/app"
)

const annotationNoContainer = "replybot/no-container"

// Env carries the lazily built container shared by every command.
type Env struct {
	ConfigPath string
	Verbose    bool
	LogOutput  io.Writer

	Container *app.Container
}

// Open builds the container once.
func (e *Env) Open(ctx context.Context) error {
	if e.Container != nil {
		return nil
	}
	c, err := app.BuildContainer(ctx, app.Options{
		ConfigPath: e.ConfigPath,
		Verbose:    e.Verbose,
		LogOutput:  e.LogOutput,
	})
	if err != nil {
		return err
	}
	e.Container = c
	return nil
}

// Close releases the container if it was opened.
func (e *Env) Close() error {
	if e.Container == nil {
		return nil
	}
	err := e.Container.Close()
	e.Container = nil
	return err
}

// SkipsContainer reports whether cmd runs without configuration and storage.
func SkipsContainer(cmd *cobra.Command) bool {
	_, ok := cmd.Annotations[annotationNoContainer]
	return ok
}

func noContainer() map[string]string {
	return map[string]string{annotationNoContainer: "true"}
}

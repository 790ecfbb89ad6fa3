// Package phone is a terminal phone simulator for trying handlers by hand.
package phone

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"smsrouter/pkg/router"
)

const defaultIdentity = "+15550100"

// SendFunc routes one text sent from the given identity.
type SendFunc func(ctx context.Context, from string, text string) (router.Result, error)

// Info describes the session shown in the header.
type Info struct {
	Identity string
	Handlers []string
}

// Run starts the simulator and blocks until the user quits.
func Run(ctx context.Context, sendFn SendFunc, info Info) error {
	program := tea.NewProgram(newModel(ctx, sendFn, info), tea.WithContext(ctx), tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(renderGoodbyeBanner())
	return nil
}

func renderGoodbyeBanner() string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("24")).
		Padding(1, 2)

	return style.Render("📱 Phone hung up")
}

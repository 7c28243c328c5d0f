package middleware

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	bm "github.com/charmbracelet/wish/bubbletea"
	"github.com/deemkeen/chartreuse/db"
	"github.com/deemkeen/chartreuse/ui"
	"github.com/deemkeen/chartreuse/util"
	"github.com/muesli/termenv"
)

// MainTui serves the node administration console on interactive sessions.
func MainTui(database *db.DB, conf *util.AppConfig) wish.Middleware {
	teaHandler := func(s ssh.Session) *tea.Program {
		pty, _, active := s.Pty()
		if !active {
			wish.Println(s, "no active terminal, skipping")
			return nil
		}

		m := ui.NewModel(database, ui.Session{
			Admin:      s.User(),
			KeyHash:    util.PkToHash(util.PublicKeyToString(s.PublicKey())),
			PublicHost: conf.Conf.PublicHost,
		}, pty.Window.Width, pty.Window.Height)
		return tea.NewProgram(m, tea.WithInput(s), tea.WithOutput(s), tea.WithAltScreen())
	}
	return bm.MiddlewareWithProgramHandler(teaHandler, termenv.ANSI256)
}

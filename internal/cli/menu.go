// internal/cli/menu.go
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"

	"github.com/arc-language/ultrabunt"
	"github.com/arc-language/ultrabunt/pkg/core"
)

// ErrNoTerminal is returned when the menu is requested without a terminal
var ErrNoTerminal = errors.New("the menu needs an interactive terminal, use list, install and remove instead")

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Browse the catalog interactively",
	Args:  cobra.NoArgs,
	RunE:  runMenu,
}

func runMenu(cmd *cobra.Command, args []string) error {
	if !isTerminal() {
		return ErrNoTerminal
	}

	ui := newMenu()
	m, err := newManager(ultrabunt.Options{
		Live: ui.live,
		Progress: func(size int64, desc string, w io.Writer) io.Writer {
			fmt.Fprintf(ui.live, "%s (%d bytes)\n", desc, size)
			return w
		},
	})
	if err != nil {
		return err
	}
	defer m.Close()

	ui.m = m
	return ui.run(cmd.Context())
}

// menu is the tview front end: categories, then packages, then an action
// modal whose output streams into a log view
type menu struct {
	m   *ultrabunt.Manager
	ctx context.Context

	app        *tview.Application
	pages      *tview.Pages
	categories *tview.List
	packages   *tview.List
	output     *tview.TextView
	footer     *tview.TextView
	live       io.Writer

	mu       sync.Mutex
	current  core.Category
	cancelOp context.CancelFunc
	scanning bool
}

func newMenu() *menu {
	u := &menu{app: tview.NewApplication()}

	u.categories = tview.NewList().ShowSecondaryText(true)
	u.categories.SetBorder(true).SetTitle(" ultrabunt ")

	u.packages = tview.NewList().ShowSecondaryText(true)
	u.packages.SetBorder(true)

	u.output = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(true)
	u.output.SetBorder(true).SetTitle(" output ")
	u.live = &drawWriter{w: tview.ANSIWriter(u.output), app: u.app}

	u.footer = tview.NewTextView().SetDynamicColors(true)

	u.pages = tview.NewPages().
		AddPage("categories", u.categories, true, true).
		AddPage("packages", u.packages, true, false).
		AddPage("output", u.output, true, false)

	return u
}

func (u *menu) run(ctx context.Context) error {
	u.ctx = ctx

	for _, c := range u.m.Categories() {
		c := c
		n := len(u.m.Catalog().ListByCategory(c.ID))
		u.categories.AddItem(c.DisplayName, fmt.Sprintf("%d packages", n), 0, func() {
			u.showCategory(c)
		})
	}
	u.categories.AddItem("Quit", "", 'q', u.app.Stop)
	u.categories.SetDoneFunc(u.app.Stop)

	u.packages.SetDoneFunc(func() {
		u.pages.SwitchToPage("categories")
		u.setFooter("")
	})

	u.output.SetDoneFunc(func(key tcell.Key) {
		if u.running() {
			return
		}
		u.showCategory(u.currentCategory())
	})

	u.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() != tcell.KeyCtrlC {
			return event
		}
		u.mu.Lock()
		cancel := u.cancelOp
		u.mu.Unlock()
		if cancel != nil {
			cancel()
			return nil
		}
		u.app.Stop()
		return nil
	})

	u.startRefresh()

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(u.pages, 0, 1, true).
		AddItem(u.footer, 1, 0, false)

	go func() {
		<-ctx.Done()
		u.app.Stop()
	}()

	return u.app.SetRoot(layout, true).Run()
}

func (u *menu) startRefresh() {
	u.mu.Lock()
	u.scanning = true
	u.mu.Unlock()
	u.setFooter("[yellow]scanning installed packages...")

	r := u.m.StartRefresh(u.ctx)
	go func() {
		err := r.Wait()
		u.mu.Lock()
		u.scanning = false
		u.mu.Unlock()

		u.app.QueueUpdateDraw(func() {
			if err != nil {
				u.setFooter(fmt.Sprintf("[red]scan failed: %v", err))
			} else {
				u.setFooter("")
			}
		})
		if c := u.currentCategory(); c.ID != "" {
			u.loadPackages(c)
		}
	}()
}

func (u *menu) showCategory(c core.Category) {
	u.mu.Lock()
	u.current = c
	u.mu.Unlock()

	u.packages.SetTitle(" " + c.DisplayName + " ")
	u.fillPackages(u.m.Cached(c.ID))
	u.pages.SwitchToPage("packages")
	u.loadPackages(c)
}

// loadPackages resolves installed state off the UI goroutine, probing the
// methods the cache does not list
func (u *menu) loadPackages(c core.Category) {
	go func() {
		sts := u.m.List(u.ctx, c.ID)
		u.app.QueueUpdateDraw(func() {
			if u.currentCategory().ID == c.ID {
				u.fillPackages(sts)
			}
		})
	}()
}

func (u *menu) fillPackages(sts []core.PackageStatus) {
	selected := u.packages.GetCurrentItem()
	u.packages.Clear()
	for _, st := range sts {
		st := st
		mark := "[gray]·[-]"
		if st.Installed {
			mark = "[green]✓[-]"
		}
		u.packages.AddItem(
			fmt.Sprintf("%s %s [gray](%s)[-]", mark, st.Record.Name, st.Record.Method),
			st.Record.Description, 0, func() { u.confirm(st) })
	}
	if selected < len(sts) {
		u.packages.SetCurrentItem(selected)
	}
}

func (u *menu) confirm(st core.PackageStatus) {
	buttons := []string{"Install", "Cancel"}
	text := fmt.Sprintf("%s\n\n%s", st.Record.Name, st.Record.Description)
	if st.Installed {
		buttons = []string{"Reinstall", "Remove", "Cancel"}
		text += "\n\ninstalled"
	}
	if st.Record.Dependency != "" {
		text += "\nrequires " + st.Record.Dependency
	}

	modal := tview.NewModal().
		SetText(text).
		AddButtons(buttons).
		SetDoneFunc(func(_ int, label string) {
			u.pages.RemovePage("modal")
			switch label {
			case "Install", "Reinstall", "Remove":
				u.perform(label, st.Record.Name)
			default:
				u.pages.SwitchToPage("packages")
			}
		})
	u.pages.AddPage("modal", modal, false, true)
}

func (u *menu) perform(action, name string) {
	ctx, cancel := context.WithCancel(u.ctx)
	u.mu.Lock()
	u.cancelOp = cancel
	u.mu.Unlock()

	u.output.Clear()
	u.output.ScrollToEnd()
	u.output.SetTitle(fmt.Sprintf(" %s %s ", action, name))
	u.pages.SwitchToPage("output")
	u.setFooter("[yellow]running, Ctrl+C cancels")

	go func() {
		defer cancel()
		fmt.Fprintf(u.live, "-> %s %s\n", action, name)

		var err error
		switch action {
		case "Install":
			err = u.m.Install(ctx, name)
		case "Remove":
			if deps := u.m.InstalledDependents(ctx, name); len(deps) > 0 {
				fmt.Fprintf(u.live, "warning: needed by %v\n", deps)
			}
			err = u.m.Remove(ctx, name)
		case "Reinstall":
			if err = u.m.Remove(ctx, name); err == nil {
				err = u.m.Install(ctx, name)
			}
		}

		if err != nil {
			fmt.Fprintf(u.live, "\n\x1b[31m✗ %v\x1b[0m\nkind: %s, details in %s\n", err, core.Kind(err), u.m.LogPath())
		} else {
			fmt.Fprintf(u.live, "\n\x1b[32m✓ %s done\x1b[0m\n", name)
		}

		u.mu.Lock()
		u.cancelOp = nil
		u.mu.Unlock()
		u.app.QueueUpdateDraw(func() { u.setFooter("Esc to go back") })
	}()
}

func (u *menu) running() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.cancelOp != nil
}

func (u *menu) currentCategory() core.Category {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.current
}

func (u *menu) setFooter(text string) {
	u.mu.Lock()
	scanning := u.scanning
	u.mu.Unlock()
	if text == "" && scanning {
		text = "[yellow]scanning installed packages..."
	}
	if text == "" {
		text = "[gray]Enter select  Esc back  q quit"
	}
	u.footer.SetText(text)
}

// drawWriter writes into a text view and redraws. It is only written from
// worker goroutines, never from the UI goroutine.
type drawWriter struct {
	mu  sync.Mutex
	w   io.Writer
	app *tview.Application
}

func (d *drawWriter) Write(p []byte) (int, error) {
	d.mu.Lock()
	n, err := d.w.Write(p)
	d.mu.Unlock()
	d.app.Draw()
	return n, err
}

package keymap

// Command IDs.
const (
	CmdPrev        = "prev"
	CmdNext        = "next"
	CmdFirst       = "first"
	CmdLast        = "last"
	CmdZoomIn      = "zoom-in"
	CmdZoomOut     = "zoom-out"
	CmdZoomReset   = "zoom-reset"
	CmdParent      = "parent"
	CmdRefresh     = "refresh"
	CmdDelete      = "delete"
	CmdCopyPath    = "copy-path"
	CmdToggleHelp  = "help"
	CmdQuit        = "quit"
	CmdConfirm     = "confirm"
	CmdCancel      = "cancel"
	CmdForceQuit   = "force-quit"
	ContextConfirm = "confirm"
)

// RegisterDefaults installs the built-in commands and bindings.
func RegisterDefaults(r *Registry) {
	global := []struct {
		id, desc string
		keys     []string
	}{
		{CmdPrev, "Previous image", []string{"left", "a"}},
		{CmdNext, "Next image", []string{"right", "d"}},
		{CmdFirst, "First image", []string{"g g", "home"}},
		{CmdLast, "Last image", []string{"G", "end"}},
		{CmdZoomIn, "Zoom in", []string{"+", "="}},
		{CmdZoomOut, "Zoom out", []string{"-"}},
		{CmdZoomReset, "Reset zoom", []string{"0"}},
		{CmdParent, "Parent directory", []string{"u", "backspace"}},
		{CmdRefresh, "Rescan directory", []string{"ctrl+r"}},
		{CmdDelete, "Delete image file", []string{"r", "delete"}},
		{CmdCopyPath, "Copy image path", []string{"y"}},
		{CmdToggleHelp, "Toggle help", []string{"?"}},
		{CmdQuit, "Quit", []string{"q", "esc"}},
		{CmdForceQuit, "Quit immediately", []string{"ctrl+c"}},
	}
	for _, c := range global {
		r.RegisterCommand(Command{ID: c.id, Description: c.desc, Context: ContextGlobal})
		for _, k := range c.keys {
			r.RegisterBinding(Binding{Key: k, Command: c.id, Context: ContextGlobal})
		}
	}

	r.RegisterCommand(Command{ID: CmdConfirm, Description: "Confirm", Context: ContextConfirm})
	r.RegisterCommand(Command{ID: CmdCancel, Description: "Cancel", Context: ContextConfirm})
	for _, k := range []string{"y", "enter"} {
		r.RegisterBinding(Binding{Key: k, Command: CmdConfirm, Context: ContextConfirm})
	}
	for _, k := range []string{"n", "esc", "q"} {
		r.RegisterBinding(Binding{Key: k, Command: CmdCancel, Context: ContextConfirm})
	}
}

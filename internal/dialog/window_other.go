//go:build !windows

package dialog

// headlessAPI is used where there is no shell security prompt to answer.
type headlessAPI struct{}

func nativeAPI() windowAPI { return headlessAPI{} }

func (headlessAPI) findTopLevel(string) (uintptr, bool) { return 0, false }
func (headlessAPI) children(uintptr) []control          { return nil }
func (headlessAPI) click(uintptr) error                 { return nil }

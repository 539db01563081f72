package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocator_SaltPaths(t *testing.T) {
	l := &Locator{Dir: "/cfg", Home: "/home/u", WorkDir: "/work", Legacy: []string{"/old/.salt", "/cfg/.salt"}}

	assert.Equal(t, filepath.Clean("/cfg/.salt"), l.SaltPath())
	assert.Equal(t, []string{
		filepath.Clean("/home/u/.printkeeper/.salt"),
		filepath.Clean("/home/u/.printkeeper_salt"),
		filepath.Clean("/work/.salt"),
		filepath.Clean("/old/.salt"),
	}, l.LegacySaltPaths(), "current salt path must never be offered as legacy")
}

func TestLocator_FallbackPathsOrder(t *testing.T) {
	l := &Locator{Dir: "/cfg", Home: "/home/u", WorkDir: "/work"}

	got := l.FallbackPaths("users.json")

	assert.Equal(t, []string{
		filepath.Clean("/cfg/users.json"),
		filepath.Clean("/home/u/.printkeeper/users.json"),
		filepath.Clean("/cfg/backup/users.json"),
		filepath.Clean("/work/users.json"),
		filepath.Clean("/work/system/users.json"),
		filepath.Clean("/work/data/users.json"),
	}, got)
}

func TestLocator_FallbackPathsDedupe(t *testing.T) {
	l := &Locator{Dir: "/work", WorkDir: "/work"}

	got := l.FallbackPaths("users.json")

	assert.Equal(t, filepath.Clean("/work/users.json"), got[0])
	assert.Len(t, got, 4)
}

func TestNewLocator_DefaultsDir(t *testing.T) {
	l := NewLocator("")
	assert.NotEmpty(t, l.ConfigDir())
}

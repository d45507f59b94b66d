package render

import (
	"os"
	"time"
)

// FileTrigger is a ReloadTrigger that watches a pair of compiled shader files
// and reports their contents whenever either modification time advances.
type FileTrigger struct {
	VertPath string
	FragPath string

	lastVert time.Time
	lastFrag time.Time
}

// NewFileTrigger watches vertPath and fragPath for changes. The files do not
// need to exist yet; they are picked up once they appear.
func NewFileTrigger(vertPath, fragPath string) *FileTrigger {
	t := &FileTrigger{VertPath: vertPath, FragPath: fragPath}
	// Seed the baseline so startup does not count as a change.
	if info, err := os.Stat(vertPath); err == nil {
		t.lastVert = info.ModTime()
	}
	if info, err := os.Stat(fragPath); err == nil {
		t.lastFrag = info.ModTime()
	}
	return t
}

// Poll implements ReloadTrigger.
func (t *FileTrigger) Poll() (vert []byte, frag []byte, ok bool) {
	vertInfo, err := os.Stat(t.VertPath)
	if err != nil {
		return nil, nil, false
	}
	fragInfo, err := os.Stat(t.FragPath)
	if err != nil {
		return nil, nil, false
	}
	if !vertInfo.ModTime().After(t.lastVert) && !fragInfo.ModTime().After(t.lastFrag) {
		return nil, nil, false
	}

	vert, err = os.ReadFile(t.VertPath)
	if err != nil {
		return nil, nil, false
	}
	frag, err = os.ReadFile(t.FragPath)
	if err != nil {
		return nil, nil, false
	}

	t.lastVert = vertInfo.ModTime()
	t.lastFrag = fragInfo.ModTime()
	return vert, frag, true
}

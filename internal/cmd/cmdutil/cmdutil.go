// Package cmdutil provides helpers shared by syncmerge commands.
package cmdutil

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/syncmerge/internal/cmd/output"
	"github.com/agentstation/syncmerge/internal/snapshot"
	"github.com/agentstation/syncmerge/pkg/detect"
)

// SnapshotArgs accepts a LOCAL snapshot and an optional REMOTE snapshot.
var SnapshotArgs = cobra.RangeArgs(1, 2)

// LoadSnapshots loads the snapshot files named in args. A missing second
// argument yields a nil remote, which reads as a remote deletion.
func LoadSnapshots(args []string) (local, remote *detect.Snapshot, err error) {
	local, err = snapshot.Load(args[0])
	if err != nil {
		return nil, nil, err
	}
	if len(args) < 2 {
		return local, nil, nil
	}
	remote, err = snapshot.Load(args[1])
	if err != nil {
		return nil, nil, err
	}
	return local, remote, nil
}

// ResolveFormat validates a configured format name and falls back to
// terminal detection when it is empty.
func ResolveFormat(name string) (output.Format, error) {
	format, err := output.ParseFormat(name)
	if err != nil {
		return "", err
	}
	return output.DetectFormat(string(format)), nil
}

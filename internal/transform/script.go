package transform

import (
	"github.com/sjc5/kiln/internal/fileset"
)

// Script minifies the script entry and renames it to script.min.js.
func Script(in fileset.FileSet) (fileset.FileSet, error) {
	entry, ok := in.Lookup(ScriptEntry)
	if !ok {
		return nil, nil
	}
	data, err := newMinifier().Bytes(mimeJS, entry.Data)
	if err != nil {
		return nil, &Error{Kind: ErrScript, Path: ScriptEntry, Err: err}
	}
	return fileset.FileSet{{Path: ScriptOutput, Data: data}}, nil
}

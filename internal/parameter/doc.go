// Package parameter provides the Parameter Registry for paramsync.
//
// A parameter is a named, bounded control whose value lives in [0,1]. The
// registry derives a display string (Text) from the value and keeps the hex
// and RGB representations of the parameter's colour consistent with each
// other.
//
// # Structure versus state
//
// The structural fields of a parameter (id, name, min, max, step, format)
// change rarely and are summarised by Fingerprint. Value and colour change
// constantly and never affect the fingerprint, which lets peers skip a full
// resync when their structural view already matches.
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use. Reads return copies, so
// callers may modify what they receive without affecting the registry.
//
// # Usage
//
//	reg := parameter.NewRegistry()
//	reg.Upsert(parameter.Update{ID: "drive", Name: parameter.String("Drive")})
//	p, ok := reg.SetValue("drive", 0.55) // p.Text == "55%"
package parameter

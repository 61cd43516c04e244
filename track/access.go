// Package track implements the usage recorder: the per-pass API through
// which a pass executor declares which resources it touches, with what
// access and at which pipeline stages. Package graph consumes the Usage
// records this package produces to build the dependency matrix.
package track

import "strings"

// Access is the bitset of ways a pass can touch a resource.
type Access uint8

const (
	AccessRead Access = 1 << iota
	AccessWrite
	AccessRenderTarget
	AccessInputAttachment
	AccessBlitSrc
	AccessBlitDst
)

// Contains reports whether every bit set in other is also set in a.
func (a Access) Contains(other Access) bool { return a&other == other }

// IsWrite reports whether a includes any access that mutates the resource.
func (a Access) IsWrite() bool {
	return a&(AccessWrite|AccessRenderTarget|AccessBlitDst) != 0
}

// IsRead reports whether a includes any access that reads the resource.
func (a Access) IsRead() bool {
	return a&(AccessRead|AccessInputAttachment|AccessBlitSrc) != 0
}

// Union returns the combined access of a and other.
func (a Access) Union(other Access) Access { return a | other }

func (a Access) String() string {
	if a == 0 {
		return "none"
	}
	var parts []string
	for bit, name := range accessNames {
		if a&bit != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

var accessNames = map[Access]string{
	AccessRead:             "Read",
	AccessWrite:            "Write",
	AccessRenderTarget:     "RenderTarget",
	AccessInputAttachment:  "InputAttachment",
	AccessBlitSrc:          "BlitSrc",
	AccessBlitDst:          "BlitDst",
}

// Stage is the bitset of pipeline stages participating in a usage.
type Stage uint8

const (
	StageVertex Stage = 1 << iota
	StageFragment
	StageCompute
	StageBlit
	StageEarlyFragmentTests
	StageLateFragmentTests
)

// Contains reports whether every bit set in other is also set in s.
func (s Stage) Contains(other Stage) bool { return s&other == other }

// Union returns the combined stage set of s and other.
func (s Stage) Union(other Stage) Stage { return s | other }

// IsEmpty reports whether no stage bit is set.
func (s Stage) IsEmpty() bool { return s == 0 }

func (s Stage) String() string {
	if s == 0 {
		return "none"
	}
	var parts []string
	for bit, name := range stageNames {
		if s&bit != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

var stageNames = map[Stage]string{
	StageVertex:             "Vertex",
	StageFragment:           "Fragment",
	StageCompute:            "Compute",
	StageBlit:               "Blit",
	StageEarlyFragmentTests: "EarlyFragmentTests",
	StageLateFragmentTests:  "LateFragmentTests",
}

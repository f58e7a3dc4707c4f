package protocol

import "encoding/json"

var knownKinds = map[FrameKind]bool{
	KindChallenge:      true,
	KindAnnounce:       true,
	KindListIDsRequest: true,
	KindListIDsReply:   true,
	KindClearNodes:     true,
	KindPeerSetup:      true,
	KindDone:           true,
}

// Encode serializes a Frame into its on-the-wire text form.
func Encode(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

// Decode parses the on-the-wire text form back into a Frame. It is the
// bijective inverse of Encode for every well-formed Frame.
//
// A structurally malformed payload yields a *DecodeError. A
// structurally valid payload whose Kind this build does not recognize
// yields a *UnknownKindError so callers can log-and-discard without
// tearing the connection down, keeping an older build interoperable
// with a newer peer that has added frame kinds.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, &DecodeError{Raw: string(data), Err: err}
	}
	if !knownKinds[f.Kind] {
		return f, &UnknownKindError{Kind: f.Kind}
	}
	return f, nil
}

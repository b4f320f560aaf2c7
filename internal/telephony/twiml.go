package telephony

import "encoding/xml"

// TwiML structures for the <Connect><Stream> response that bridges the call
// to our media stream endpoint.
type VoiceResponse struct {
	XMLName xml.Name `xml:"Response"`
	Connect Connect  `xml:"Connect"`
}

type Connect struct {
	Stream Stream `xml:"Stream"`
}

type Stream struct {
	URL string `xml:"url,attr"`
}

// StreamTwiML renders TwiML connecting the call to the session's media stream.
func StreamTwiML(publicDomain, sessionID string) (string, error) {
	resp := VoiceResponse{
		Connect: Connect{
			Stream: Stream{
				URL: "wss://" + publicDomain + "/media-stream/" + sessionID,
			},
		},
	}

	out, err := xml.Marshal(resp)
	if err != nil {
		return "", err
	}
	return xml.Header + string(out), nil
}

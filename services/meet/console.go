package meetsvc

import (
	"context"
	"crypto/rand"
	"log"
	"math/big"
	"strings"

	"github.com/pkg/errors"

	"github.com/skillbarter/backend/core/booking"
)

const (
	consoleMeetBaseURL = "https://meet.google.com/"
	letters            = "abcdefghijklmnopqrstuvwxyz"
)

type consoleProvider struct {
	disableOutput bool
}

var _ booking.MeetingLinkProvider = (*consoleProvider)(nil)

// NewConsoleProvider generates meet-like links locally, without calling any API.
func NewConsoleProvider(disableOutput bool) booking.MeetingLinkProvider {
	return &consoleProvider{disableOutput: disableOutput}
}

func (p *consoleProvider) CreateMeetingLink(_ context.Context, req booking.MeetingRequest) (string, error) {
	code, err := meetingCode()
	if err != nil {
		return "", err
	}
	link := consoleMeetBaseURL + code
	if !p.disableOutput {
		log.Printf("meeting %q at %s: %s", req.Summary, req.Start.Format("2006-01-02 15:04 MST"), link)
	}
	return link, nil
}

// meetingCode returns a code formatted like "abc-defg-hij".
func meetingCode() (string, error) {
	var sb strings.Builder
	for i, n := range []int{3, 4, 3} {
		if i > 0 {
			sb.WriteByte('-')
		}
		for j := 0; j < n; j++ {
			idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
			if err != nil {
				return "", errors.Wrap(err, "generating meeting code")
			}
			sb.WriteByte(letters[idx.Int64()])
		}
	}
	return sb.String(), nil
}

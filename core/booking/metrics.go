package booking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var meetingLinks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "skillbarter_meeting_links_total",
	Help: "Total number of meeting link requests by outcome",
}, []string{"outcome"})

package metrics

import "github.com/prometheus/client_golang/prometheus"

// Domain counts comment and like activity.
type Domain struct {
	commentsCreated *prometheus.CounterVec
	commentsDeleted *prometheus.CounterVec
	likeToggles     *prometheus.CounterVec
}

// NewDomain registers the domain counters on reg. A nil registry yields
// collectors that are counted but never exported.
func NewDomain(reg prometheus.Registerer) *Domain {
	d := &Domain{
		commentsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inkwell_comments_created_total",
			Help: "Comments created, by kind (root or reply).",
		}, []string{"kind"}),
		commentsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inkwell_comments_deleted_total",
			Help: "Comment rows removed, by kind of the deleted target.",
		}, []string{"kind"}),
		likeToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inkwell_like_toggles_total",
			Help: "Like toggles, by resulting state (liked or unliked).",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(d.commentsCreated, d.commentsDeleted, d.likeToggles)
	}
	return d
}

// CommentCreated records a new root comment or reply.
func (d *Domain) CommentCreated(root bool) {
	if d == nil {
		return
	}
	d.commentsCreated.WithLabelValues(kindLabel(root)).Inc()
}

// CommentsDeleted records n removed rows for a delete targeting a root or a reply.
func (d *Domain) CommentsDeleted(root bool, n int) {
	if d == nil || n <= 0 {
		return
	}
	d.commentsDeleted.WithLabelValues(kindLabel(root)).Add(float64(n))
}

// LikeToggled records the state a toggle ended in.
func (d *Domain) LikeToggled(liked bool) {
	if d == nil {
		return
	}
	result := "unliked"
	if liked {
		result = "liked"
	}
	d.likeToggles.WithLabelValues(result).Inc()
}

func kindLabel(root bool) string {
	if root {
		return "root"
	}
	return "reply"
}

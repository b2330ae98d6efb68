package ui

import (
	"fmt"
	"strings"

	"github.com/rescp17/lanpeer/internal/style"
	"github.com/rescp17/lanpeer/internal/util"
	"github.com/rescp17/lanpeer/pkg/transfer"
)

const maxFinished = 5

type transferLine struct {
	id        string
	direction transfer.Direction
	fileName  string
	bytes     int64
	total     int64
}

// transfersModel shows transfers in flight and the last few outcomes.
type transfersModel struct {
	active   []transferLine
	finished []transfer.Result
}

func newTransfersModel() transfersModel {
	return transfersModel{}
}

func (t *transfersModel) progress(p transfer.Progress) {
	for i := range t.active {
		if t.active[i].id == p.ID && t.active[i].direction == p.Direction {
			t.active[i].bytes, t.active[i].total = p.Bytes, p.Total
			return
		}
	}
	t.active = append(t.active, transferLine{
		id:        p.ID,
		direction: p.Direction,
		fileName:  p.FileName,
		bytes:     p.Bytes,
		total:     p.Total,
	})
}

func (t *transfersModel) finish(r transfer.Result) {
	for i := range t.active {
		if t.active[i].id == r.ID && t.active[i].direction == r.Direction {
			t.active = append(t.active[:i], t.active[i+1:]...)
			break
		}
	}
	t.finished = append([]transfer.Result{r}, t.finished...)
	if len(t.finished) > maxFinished {
		t.finished = t.finished[:maxFinished]
	}
}

func arrow(d transfer.Direction) string {
	if d == transfer.Incoming {
		return "<-"
	}
	return "->"
}

func (t *transfersModel) view() string {
	if len(t.active) == 0 && len(t.finished) == 0 {
		return ""
	}
	var lines []string
	for _, l := range t.active {
		lines = append(lines, util.Row([]int{3, 30, 20, 7},
			arrow(l.direction),
			l.fileName,
			util.FormatSize(l.bytes)+" / "+util.FormatSize(l.total),
			util.FormatPercent(l.bytes, l.total),
		))
	}
	for _, r := range t.finished {
		outcome := style.Outcome(r.Reason, r.Succeeded())
		where := r.Peer
		if r.Succeeded() && r.Direction == transfer.Incoming {
			where = r.Path
		}
		lines = append(lines, fmt.Sprintf("%s %s", util.Row([]int{3, 30, 20}, arrow(r.Direction), r.FileName, where), outcome))
	}
	return strings.Join(lines, "\n")
}

package ui

import (
	"fmt"

	receiverEvent "github.com/rescp17/lanpeer/internal/app_events/receiver"
	"github.com/rescp17/lanpeer/internal/style"
	"github.com/rescp17/lanpeer/internal/util"
	"github.com/rescp17/lanpeer/pkg/protocol"
)

// offersModel queues incoming offers; only the oldest is prompted.
type offersModel struct {
	queue []receiverEvent.IncomingOfferMsg
}

func (o *offersModel) push(msg receiverEvent.IncomingOfferMsg) {
	o.queue = append(o.queue, msg)
}

func (o *offersModel) current() (receiverEvent.IncomingOfferMsg, bool) {
	if len(o.queue) == 0 {
		return receiverEvent.IncomingOfferMsg{}, false
	}
	return o.queue[0], true
}

func (o *offersModel) pop() {
	if len(o.queue) > 0 {
		o.queue = o.queue[1:]
	}
}

func (o *offersModel) remove(id string) {
	for i, msg := range o.queue {
		if msg.RequestID == id {
			o.queue = append(o.queue[:i], o.queue[i+1:]...)
			return
		}
	}
}

func (o *offersModel) view(keys KeyMap) (string, bool) {
	req, ok := o.current()
	if !ok {
		return "", false
	}
	offer := req.Offer
	body := fmt.Sprintf("%s wants to send you a file\n\n  %s  (%s)\n  md5 %s",
		style.PeerStyle.Render(protocol.JoinKey(offer.SenderIP, offer.SenderPort)),
		style.HeaderStyle.Render(offer.FileName),
		util.FormatSize(offer.FileSize),
		offer.FileMD5,
	)
	if waiting := len(o.queue) - 1; waiting > 0 {
		body += fmt.Sprintf("\n\n  %d more offer(s) waiting", waiting)
	}
	return style.OfferBox.Render(body) + "\n" + style.HelpStyle.Render(helpLine(keys.Accept, keys.Reject)), true
}

// Package protocol defines the wire messages exchanged between lanpeer nodes
// and their encoding, both as UDP datagrams and as length-prefixed frames on
// the bulk-transfer TCP stream.
package protocol

import (
	"runtime"
	"strconv"
	"strings"
	"time"
)

type MessageType string

const (
	TypeNodeDiscovery    MessageType = "NODE_DISCOVERY"
	TypeSendOffer        MessageType = "SEND_OFFER"
	TypeReceiveConfirm   MessageType = "RECEIVE_CONFIRM"
	TypeReceiveReject    MessageType = "RECEIVE_REJECT"
	TypeFileMeta         MessageType = "FILE_META"
	TypeFileBlock        MessageType = "FILE_BLOCK"
	TypeTransferComplete MessageType = "TRANSFER_COMPLETE"
	TypeAck              MessageType = "ACK"
	TypeError            MessageType = "ERR"
)

const (
	DefaultDiscoveryPort = 23333
	DefaultControlPort   = 12000

	// BlockSize is the fixed bulk-phase chunk size.
	BlockSize = 64 * 1024

	// MaxDatagramSize bounds control and discovery datagrams.
	MaxDatagramSize = 8 * 1024
)

// Message is implemented by every wire variant.
type Message interface {
	Type() MessageType
}

// Announce is broadcast periodically on the discovery port.
type Announce struct {
	Name      string `json:"name"`
	IP        string `json:"ip"`
	Port      int    `json:"port"`
	Platform  string `json:"platform"`
	Timestamp string `json:"timestamp"`
}

// Offer asks the target node to accept a file.
type Offer struct {
	SenderIP   string `json:"sender_ip"`
	SenderPort int    `json:"sender_port"`
	FileName   string `json:"file_name"`
	FileSize   int64  `json:"file_size"`
	FileMD5    string `json:"file_md5"`
	Timestamp  string `json:"timestamp"`
}

// Accept carries the TCP port the receiver is listening on for this transfer.
type Accept struct {
	Timestamp string `json:"timestamp"`
	TCPPort   int    `json:"tcp_port"`
}

type Reject struct {
	Timestamp string `json:"timestamp"`
}

// FileMeta is the first frame on the bulk stream.
type FileMeta struct {
	FileName    string `json:"file_name"`
	TotalBlocks int    `json:"total_blocks"`
	BlockSize   int    `json:"block_size"`
}

// Chunk is raw file data. It travels as a bare frame with no envelope; its
// index is implied by arrival order.
type Chunk struct {
	Data []byte `json:"-"`
}

// Complete is the last frame the sender writes.
type Complete struct {
	FileMD5   string `json:"file_md5"`
	Timestamp string `json:"timestamp"`
}

type Ack struct {
	BlockNumber int `json:"block_number"`
}

type Error struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

func (Announce) Type() MessageType { return TypeNodeDiscovery }
func (Offer) Type() MessageType    { return TypeSendOffer }
func (Accept) Type() MessageType   { return TypeReceiveConfirm }
func (Reject) Type() MessageType   { return TypeReceiveReject }
func (FileMeta) Type() MessageType { return TypeFileMeta }
func (Chunk) Type() MessageType    { return TypeFileBlock }
func (Complete) Type() MessageType { return TypeTransferComplete }
func (Ack) Type() MessageType      { return TypeAck }
func (Error) Type() MessageType    { return TypeError }

// Key returns the membership key of the announcing node.
func (a Announce) Key() string {
	return JoinKey(a.IP, a.Port)
}

// JoinKey builds the ip:port key used for peers and pending offers.
func JoinKey(ip string, port int) string {
	return ip + ":" + strconv.Itoa(port)
}

// Timestamp returns the current Unix time in the decimal string form used on the wire.
func Timestamp() string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}

// Platform returns the platform tag advertised in announces.
func Platform() string {
	switch runtime.GOOS {
	case "linux":
		return "Linux"
	case "darwin":
		return "Darwin"
	case "windows":
		return "Windows"
	default:
		return strings.ToUpper(runtime.GOOS[:1]) + runtime.GOOS[1:]
	}
}

func NewAnnounce(name, ip string, port int) Announce {
	return Announce{Name: name, IP: ip, Port: port, Platform: Platform(), Timestamp: Timestamp()}
}

func NewOffer(senderIP string, senderPort int, fileName string, fileSize int64, fileMD5 string) Offer {
	return Offer{
		SenderIP:   senderIP,
		SenderPort: senderPort,
		FileName:   fileName,
		FileSize:   fileSize,
		FileMD5:    fileMD5,
		Timestamp:  Timestamp(),
	}
}

func NewAccept(tcpPort int) Accept {
	return Accept{Timestamp: Timestamp(), TCPPort: tcpPort}
}

func NewReject() Reject {
	return Reject{Timestamp: Timestamp()}
}

func NewFileMeta(fileName string, fileSize int64, blockSize int) FileMeta {
	return FileMeta{FileName: fileName, TotalBlocks: TotalBlocks(fileSize, blockSize), BlockSize: blockSize}
}

func NewComplete(fileMD5 string) Complete {
	return Complete{FileMD5: fileMD5, Timestamp: Timestamp()}
}

func NewAck(blockNumber int) Ack {
	return Ack{BlockNumber: blockNumber}
}

func NewError(msg string) Error {
	return Error{Error: msg, Timestamp: Timestamp()}
}

// TotalBlocks returns ceil(size/blockSize).
func TotalBlocks(size int64, blockSize int) int {
	if size <= 0 || blockSize <= 0 {
		return 0
	}
	bs := int64(blockSize)
	return int((size + bs - 1) / bs)
}

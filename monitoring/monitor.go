// Package monitoring serves the live state of a collector session over HTTP
// so a long trace run can be watched from a browser.
package monitoring

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"

	"github.com/cyb70289/cmn-analyzer/pmu"
)

// Session is the collector state the monitor exposes.
type Session interface {
	State() pmu.State
	Mode() pmu.Mode
	Elapsed() time.Duration
	Progress() []pmu.SlotProgress
}

// Monitor turns a running session into a small web server. All endpoints
// are read only; the session is controlled from the terminal.
type Monitor struct {
	session    Session
	portNumber int
}

// NewMonitor creates a Monitor for the given session.
func NewMonitor(s Session) *Monitor {
	return &Monitor{session: s}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n",
			portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// StartServer starts the monitor web server and opens a browser tab
// pointing at it. It returns immediately; requests are served in the
// background until the process exits.
func (m *Monitor) StartServer() {
	r := mux.NewRouter()

	r.HandleFunc("/api/status", m.status)
	r.HandleFunc("/api/slots", m.listSlots)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/", m.index)
	http.Handle("/", r)

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring session with %s\n", url)

	go func() {
		err = http.Serve(listener, nil)
		dieOnErr(err)
	}()

	if err := browser.OpenURL(url); err != nil {
		log.Printf("cannot open browser: %v", err)
	}
}

type statusRsp struct {
	State     string             `json:"state"`
	Mode      string             `json:"mode"`
	ElapsedMS int64              `json:"elapsed_ms"`
	Captured  []pmu.SlotProgress `json:"captured"`
}

func (m *Monitor) statusNow() statusRsp {
	return statusRsp{
		State:     m.session.State().String(),
		Mode:      m.session.Mode().String(),
		ElapsedMS: m.session.Elapsed().Milliseconds(),
		Captured:  m.session.Progress(),
	}
}

func (m *Monitor) status(w http.ResponseWriter, _ *http.Request) {
	bytes, err := json.Marshal(m.statusNow())
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) listSlots(w http.ResponseWriter, _ *http.Request) {
	bytes, err := json.Marshal(m.session.Progress())
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

const indexPage = `<!DOCTYPE html>
<html>
<head><title>cmn-analyzer</title>
<meta http-equiv="refresh" content="1">
<style>body{font-family:monospace;margin:2em}td{padding:0 1em}</style>
</head>
<body>
<h2>cmn-analyzer session</h2>
<p>state: %s, mode: %s, elapsed: %d ms</p>
<table>%s</table>
</body>
</html>`

func (m *Monitor) index(w http.ResponseWriter, _ *http.Request) {
	status := m.statusNow()
	rows := ""
	for _, slot := range status.Captured {
		rows += fmt.Sprintf("<tr><td>%s</td><td>%d</td></tr>",
			slot.Label, slot.Total)
	}
	fmt.Fprintf(w, indexPage,
		status.State, status.Mode, status.ElapsedMS, rows)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}

package monitoring

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cyb70289/cmn-analyzer/pmu"
)

type fakeSession struct {
	state    pmu.State
	mode     pmu.Mode
	elapsed  time.Duration
	progress []pmu.SlotProgress
}

func (s *fakeSession) State() pmu.State             { return s.state }
func (s *fakeSession) Mode() pmu.Mode               { return s.mode }
func (s *fakeSession) Elapsed() time.Duration       { return s.elapsed }
func (s *fakeSession) Progress() []pmu.SlotProgress { return s.progress }

var _ = Describe("Monitor", func() {
	var (
		session *fakeSession
		m       *Monitor
	)

	BeforeEach(func() {
		session = &fakeSession{
			state:   pmu.StateRunning,
			mode:    pmu.ModeTrace,
			elapsed: 2500 * time.Millisecond,
			progress: []pmu.SlotProgress{
				{Label: "cmn0-xp8-port1-up-grp0-req-all", Total: 42},
				{Label: "cmn0-xp8-port1-down-grp0-rsp-all", Total: 7},
			},
		}
		m = NewMonitor(session)
	})

	It("should report the session status", func() {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/api/status", nil)

		m.status(w, r)

		var rsp statusRsp
		Expect(json.Unmarshal(w.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.State).To(Equal("running"))
		Expect(rsp.Mode).To(Equal("trace"))
		Expect(rsp.ElapsedMS).To(Equal(int64(2500)))
		Expect(rsp.Captured).To(HaveLen(2))
		Expect(rsp.Captured[0].Total).To(Equal(uint64(42)))
	})

	It("should list the slot totals", func() {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/api/slots", nil)

		m.listSlots(w, r)

		var slots []pmu.SlotProgress
		Expect(json.Unmarshal(w.Body.Bytes(), &slots)).To(Succeed())
		Expect(slots).To(Equal(session.progress))
	})

	It("should render the index page", func() {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/", nil)

		m.index(w, r)

		body := w.Body.String()
		Expect(strings.Count(body, "<tr>")).To(Equal(2))
		Expect(body).To(ContainSubstring("state: running"))
		Expect(body).To(ContainSubstring("cmn0-xp8-port1-up-grp0-req-all"))
	})

	It("should fall back to a random port for privileged ports", func() {
		m.WithPortNumber(80)

		Expect(m.portNumber).To(Equal(0))
	})
})

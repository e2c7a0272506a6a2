//go:build integration

package integration

import (
	"context"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
	"github.com/eliteGoblin/focusd/site_mon/internal/infra"
	"github.com/eliteGoblin/focusd/site_mon/internal/usecase"
	"github.com/eliteGoblin/focusd/site_mon/test/fixtures"
)

const tick = 5 * time.Millisecond

// latestSurface keeps the most recent snapshot.
type latestSurface struct {
	mu   sync.Mutex
	last domain.Snapshot
}

func (s *latestSurface) Publish(snap domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = snap
}

func (s *latestSurface) Latest() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

var _ = Describe("Block and unblock lifecycle", func() {
	var (
		tmpDir  string
		hosts   *fixtures.FakeHosts
		surface *latestSurface
		ctrl    *usecase.Controller
		cancel  context.CancelFunc
	)

	startController := func(mode domain.MatchMode) {
		store := infra.NewTextConfigStore(hosts.ConfigPath())
		blocker := infra.NewHostsFileBlocker(hosts.Path, infra.DefaultRedirectIP, mode, zap.NewNop())
		surface = &latestSurface{}
		ctrl = usecase.NewController(usecase.Deps{
			Config:  store,
			Hosts:   blocker,
			Surface: surface,
		}, usecase.WithTickInterval(tick))

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		go ctrl.Run(ctx)
		Eventually(func() domain.BlockState { return surface.Latest().BlockState }).Should(Equal(domain.StateBlocked))
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "sitemon-integration-*")
		Expect(err).NotTo(HaveOccurred())

		hosts, err = fixtures.NewFakeHosts(tmpDir, fixtures.DefaultHostsContent)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if cancel != nil {
			cancel()
			Eventually(ctrl.Done()).Should(BeClosed())
		}
		os.Chmod(tmpDir, 0755)
		os.RemoveAll(tmpDir)
	})

	Describe("Startup", func() {
		Context("with no config file", func() {
			It("should block the default domains", func() {
				startController(domain.MatchHostname)

				for _, d := range domain.DefaultDomains() {
					Expect(hosts.IsBlocked(infra.DefaultRedirectIP, d)).To(BeTrue(), d)
				}
				Expect(surface.Latest().DurationMinutes).To(Equal(domain.DefaultDurationMinutes))
			})
		})

		Context("with a saved config", func() {
			It("should block exactly the saved domains", func() {
				Expect(hosts.WriteConfig("30", "reddit.com", "news.ycombinator.com")).To(Succeed())
				startController(domain.MatchHostname)

				Expect(hosts.IsBlocked(infra.DefaultRedirectIP, "reddit.com")).To(BeTrue())
				Expect(hosts.IsBlocked(infra.DefaultRedirectIP, "news.ycombinator.com")).To(BeTrue())
				Expect(hosts.IsBlocked(infra.DefaultRedirectIP, "youtube.com")).To(BeFalse())
				Expect(surface.Latest().DurationMinutes).To(Equal("30"))
			})
		})
	})

	DescribeTable("Temporary unblock round trip",
		func(mode domain.MatchMode) {
			startController(mode)

			Expect(ctrl.StartTimer(context.Background(), "1")).To(Succeed())
			Expect(hosts.MustRead()).To(Equal(hosts.Initial), "unblock restores the original file")
			Expect(surface.Latest().TimerState).To(Equal(domain.TimerRunning))

			Eventually(func() domain.TimerState { return surface.Latest().TimerState }, 5*time.Second).
				Should(Equal(domain.TimerIdle))
			Expect(surface.Latest().BlockState).To(Equal(domain.StateBlocked))
			Expect(surface.Latest().Remaining).To(Equal("00:00"))
			for _, d := range domain.DefaultDomains() {
				Expect(hosts.IsBlocked(infra.DefaultRedirectIP, d)).To(BeTrue(), d)
			}
		},
		Entry("hostname matching", domain.MatchHostname),
		Entry("substring matching", domain.MatchSubstring),
	)

	Describe("Starting while running", func() {
		It("should reject the second start", func() {
			startController(domain.MatchHostname)

			Expect(ctrl.StartTimer(context.Background(), "5")).To(Succeed())
			Expect(ctrl.StartTimer(context.Background(), "5")).To(MatchError(usecase.ErrTimerRunning))
		})
	})

	Describe("Adding a domain", func() {
		Context("while blocked", func() {
			It("should block it immediately and persist it", func() {
				startController(domain.MatchHostname)

				added, err := ctrl.AddDomain(context.Background(), "twitter.com")
				Expect(err).NotTo(HaveOccurred())
				Expect(added).To(BeTrue())
				Expect(hosts.IsBlocked(infra.DefaultRedirectIP, "twitter.com")).To(BeTrue())

				cfg, err := infra.NewTextConfigStore(hosts.ConfigPath()).Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Blocklist).To(ContainElement("twitter.com"))
			})
		})

		Context("while temporarily unblocked", func() {
			It("should apply it when the countdown ends", func() {
				startController(domain.MatchHostname)
				Expect(ctrl.StartTimer(context.Background(), "1")).To(Succeed())

				_, err := ctrl.AddDomain(context.Background(), "twitter.com")
				Expect(err).NotTo(HaveOccurred())
				Expect(hosts.IsBlocked(infra.DefaultRedirectIP, "twitter.com")).To(BeFalse())

				Eventually(func() bool {
					return hosts.IsBlocked(infra.DefaultRedirectIP, "twitter.com")
				}, 5*time.Second).Should(BeTrue())
			})
		})
	})

	Describe("Quit", func() {
		It("should re-block during a countdown and stop", func() {
			startController(domain.MatchHostname)
			Expect(ctrl.StartTimer(context.Background(), "10")).To(Succeed())

			Expect(ctrl.Quit(context.Background())).To(Succeed())
			Eventually(ctrl.Done()).Should(BeClosed())

			Expect(hosts.IsBlocked(infra.DefaultRedirectIP, "youtube.com")).To(BeTrue())
			Expect(ctrl.Show(context.Background())).To(MatchError(usecase.ErrStopped))
		})
	})

	Describe("Unwritable hosts file", func() {
		It("should stay unblocked and report the error", func() {
			if os.Geteuid() == 0 {
				Skip("root can write read-only files")
			}
			Expect(os.Chmod(hosts.Path, 0444)).To(Succeed())
			Expect(os.Chmod(tmpDir, 0555)).To(Succeed())

			store := infra.NewTextConfigStore(hosts.ConfigPath())
			blocker := infra.NewHostsFileBlocker(hosts.Path, infra.DefaultRedirectIP, domain.MatchHostname, zap.NewNop())
			surface = &latestSurface{}
			ctrl = usecase.NewController(usecase.Deps{Config: store, Hosts: blocker, Surface: surface})

			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go ctrl.Run(ctx)

			Eventually(func() string { return surface.Latest().LastError }).Should(HavePrefix("block:"))
			Expect(surface.Latest().BlockState).To(Equal(domain.StateUnblocked))
			Expect(hosts.MustRead()).To(Equal(hosts.Initial))
		})
	})
})

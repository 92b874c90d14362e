package registry_test

import (
	"log/slog"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/sdn-lb/internal/registry"
)

func TestRegistry(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Registry Suite")
}

var _ = Describe("Registry", func() {
	var (
		log   *slog.Logger
		addrs []registry.Address
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(os.Stdout, nil))
		addrs = []registry.Address{
			{Host: "10.0.0.1", Port: 5001},
			{Host: "10.0.0.2", Port: 5002},
			{Host: "10.0.0.3", Port: 5003},
		}
	})

	Describe("New", func() {
		It("should build descriptors for every configured backend", func() {
			reg, err := registry.New(addrs, log)
			Expect(err).NotTo(HaveOccurred())
			Expect(reg.Size()).To(Equal(3))

			ids := make(map[string]bool)
			for _, snap := range reg.Snapshots() {
				ids[snap.ID] = true
				Expect(snap.Healthy).To(BeTrue())
				Expect(snap.Weight).To(Equal(1.0))
			}

			Expect(ids).To(HaveKey("10.0.0.1:5001"))
			Expect(ids).To(HaveKey("10.0.0.2:5002"))
			Expect(ids).To(HaveKey("10.0.0.3:5003"))
		})

		It("should preserve insertion order", func() {
			reg, err := registry.New(addrs, log)
			Expect(err).NotTo(HaveOccurred())

			servers := reg.Servers()
			Expect(servers[0].ID()).To(Equal("10.0.0.1:5001"))
			Expect(servers[1].ID()).To(Equal("10.0.0.2:5002"))
			Expect(servers[2].ID()).To(Equal("10.0.0.3:5003"))
		})

		It("should collapse duplicate entries keeping the first", func() {
			reg, err := registry.New([]registry.Address{
				{Host: "10.0.0.1", Port: 5001},
				{Host: "10.0.0.1", Port: 5001},
			}, log)
			Expect(err).NotTo(HaveOccurred())
			Expect(reg.Size()).To(Equal(1))
		})

		It("should fail on an empty pool", func() {
			reg, err := registry.New(nil, log)
			Expect(err).To(MatchError(registry.ErrNoBackends))
			Expect(reg).To(BeNil())
		})
	})

	Describe("Healthy", func() {
		It("should exclude backends that failed their probe", func() {
			reg, err := registry.New(addrs, log)
			Expect(err).NotTo(HaveOccurred())

			servers := reg.Servers()
			servers[1].ApplyProbeFailure()

			healthy := reg.Healthy()
			Expect(healthy).To(HaveLen(2))
			Expect(healthy[0].ID()).To(Equal("10.0.0.1:5001"))
			Expect(healthy[1].ID()).To(Equal("10.0.0.3:5003"))
		})
	})

	Describe("RecordRequest", func() {
		It("should update latency and increment exactly one counter", func() {
			reg, err := registry.New(addrs, log)
			Expect(err).NotTo(HaveOccurred())

			ok := reg.RecordRequest("10.0.0.2:5002", 42.5)
			Expect(ok).To(BeTrue())

			srv, found := reg.Lookup("10.0.0.2:5002")
			Expect(found).To(BeTrue())

			snap := srv.Snapshot()
			Expect(snap.LatencyMs).To(Equal(42.5))
			Expect(snap.TotalRequests).To(Equal(int64(1)))

			other, _ := reg.Lookup("10.0.0.1:5001")
			Expect(other.Snapshot().TotalRequests).To(Equal(int64(0)))
		})

		It("should be a no-op for unknown server IDs", func() {
			reg, err := registry.New(addrs, log)
			Expect(err).NotTo(HaveOccurred())

			ok := reg.RecordRequest("10.9.9.9:9999", 10)
			Expect(ok).To(BeFalse())
			Expect(reg.TotalRequests()).To(Equal(int64(0)))
		})
	})

	Describe("SetActiveConnections", func() {
		It("should set the gauge on the named server", func() {
			reg, err := registry.New(addrs, log)
			Expect(err).NotTo(HaveOccurred())

			Expect(reg.SetActiveConnections("10.0.0.1:5001", 7)).To(BeTrue())

			srv, _ := reg.Lookup("10.0.0.1:5001")
			Expect(srv.Snapshot().ActiveConnections).To(Equal(7))
		})

		It("should clamp negative values to zero", func() {
			reg, err := registry.New(addrs, log)
			Expect(err).NotTo(HaveOccurred())

			reg.SetActiveConnections("10.0.0.1:5001", -3)

			srv, _ := reg.Lookup("10.0.0.1:5001")
			Expect(srv.Snapshot().ActiveConnections).To(Equal(0))
		})

		It("should reject unknown server IDs", func() {
			reg, err := registry.New(addrs, log)
			Expect(err).NotTo(HaveOccurred())
			Expect(reg.SetActiveConnections("nope:1", 1)).To(BeFalse())
		})
	})
})

var _ = Describe("Server", func() {
	Describe("ApplyProbeSuccess", func() {
		It("should record all probe fields in one update", func() {
			srv := registry.NewServer("10.0.0.1", 5001)
			at := time.Now()

			changed := srv.ApplyProbeSuccess(12.5, 40, 60, at)
			Expect(changed).To(BeFalse(), "already healthy")

			snap := srv.Snapshot()
			Expect(snap.Healthy).To(BeTrue())
			Expect(snap.LatencyMs).To(Equal(12.5))
			Expect(snap.CPUPercent).To(Equal(40.0))
			Expect(snap.MemoryPercent).To(Equal(60.0))
			Expect(snap.LastHealthCheck).To(Equal(at))
		})

		It("should report a transition from unhealthy", func() {
			srv := registry.NewServer("10.0.0.1", 5001)
			srv.ApplyProbeFailure()

			changed := srv.ApplyProbeSuccess(5, 0, 0, time.Now())
			Expect(changed).To(BeTrue())
			Expect(srv.IsHealthy()).To(BeTrue())
		})
	})

	Describe("ApplyProbeFailure", func() {
		It("should keep stale metrics while flipping health", func() {
			srv := registry.NewServer("10.0.0.1", 5001)
			srv.ApplyProbeSuccess(12.5, 40, 60, time.Now())

			changed := srv.ApplyProbeFailure()
			Expect(changed).To(BeTrue())

			snap := srv.Snapshot()
			Expect(snap.Healthy).To(BeFalse())
			Expect(snap.LatencyMs).To(Equal(12.5))
			Expect(snap.CPUPercent).To(Equal(40.0))
			Expect(snap.MemoryPercent).To(Equal(60.0))
		})

		It("should not report a change when already unhealthy", func() {
			srv := registry.NewServer("10.0.0.1", 5001)
			srv.ApplyProbeFailure()
			Expect(srv.ApplyProbeFailure()).To(BeFalse())
		})
	})
})

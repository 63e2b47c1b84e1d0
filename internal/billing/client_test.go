package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/star4ce/star4ce-backend/pkg/logger"
)

func TestBilling(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Billing Client Suite")
}

var _ = ginkgo.Describe("Client", func() {
	newTestClient := func() *Client {
		return NewClient(Config{
			APIBaseURL:    "https://billing.example.com",
			APIKey:        "key",
			WebhookSecret: "whsec_test",
			PriceID:       "price_basic",
			Timeout:       time.Second,
			MaxWorkers:    2,
			JobQueueSize:  4,
		}, logger.LoggerWrapper())
	}

	ginkgo.Describe("Shutdown", func() {
		ginkgo.It("should shut down cleanly immediately after construction", func() {
			// Given a client whose dispatcher and workers just started
			client := newTestClient()

			// When
			done := make(chan struct{})
			go func() {
				client.Shutdown()
				close(done)
			}()

			// Then every goroutine drains without hanging
			gomega.Eventually(done, "2s").Should(gomega.BeClosed())
		})

		ginkgo.It("should still accept queued jobs before shutdown", func() {
			// Given
			client := newTestClient()
			defer client.Shutdown()

			// When
			err := client.EnqueueReconcile(ReconcileJob{DealershipID: 1, SubscriptionID: "sub_1"})

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
		})
	})

	ginkgo.Describe("VerifyWebhookSignature", func() {
		sign := func(secret string, payload []byte) string {
			mac := hmac.New(sha256.New, []byte(secret))
			mac.Write(payload)
			return hex.EncodeToString(mac.Sum(nil))
		}

		ginkgo.It("should accept a payload signed with the shared secret", func() {
			// Given
			client := newTestClient()
			defer client.Shutdown()
			payload := []byte(`{"type":"checkout.completed"}`)

			// Then
			gomega.Expect(client.VerifyWebhookSignature(payload, sign("whsec_test", payload))).To(gomega.BeTrue())
		})

		ginkgo.It("should reject a wrong or missing signature", func() {
			// Given
			client := newTestClient()
			defer client.Shutdown()
			payload := []byte(`{"type":"checkout.completed"}`)

			// Then
			gomega.Expect(client.VerifyWebhookSignature(payload, sign("whsec_other", payload))).To(gomega.BeFalse())
			gomega.Expect(client.VerifyWebhookSignature(payload, "")).To(gomega.BeFalse())
		})
	})
})

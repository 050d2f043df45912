package rest_test

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cspr/pkg/node"
	"github.com/papercomputeco/cspr/pkg/rest"
)

// fakeGetter serves canned bodies per endpoint.
type fakeGetter map[string]string

func (f fakeGetter) RESTGet(_ context.Context, endpoint string) ([]byte, error) {
	body, ok := f[endpoint]
	if !ok {
		return nil, &node.StatusError{StatusCode: 404}
	}
	return []byte(body), nil
}

const metricsBody = `# HELP mem_deploy_gossiper bytes
# TYPE mem_deploy_gossiper gauge
mem_deploy_gossiper 0
amount_of_blocks 12
Mem_Estimator_runtime_s 1.5

chain_height 345
`

const schemaBody = `{
  "openrpc": "1.0.0-rc1",
  "info": {},
  "servers": [],
  "methods": [
    {"name": "info_get_status", "params": []},
    {"name": "account_put_deploy", "params": [{"name": "deploy"}]},
    {"name": "chain_get_block", "params": []}
  ],
  "components": {}
}`

var _ = Describe("Client", func() {
	var (
		ctx    context.Context
		client *rest.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = rest.NewClient(fakeGetter{
			rest.EndpointStatus:           `{"api_version":"1.5.6","chainspec_name":"casper-test","last_added_block_info":{"height":345,"era_id":12}}`,
			rest.EndpointMetrics:          metricsBody,
			rest.EndpointRPCSchema:        schemaBody,
			rest.EndpointValidatorChanges: `[{"public_key":"01ab","status_changes":[{"era_id":3,"validator_change":"Added"}]}]`,
			rest.EndpointChainspec:        `{"chainspec_bytes":"00ff","maybe_genesis_accounts_bytes":null,"maybe_global_state_bytes":null}`,
		})
	})

	It("reads the node status", func() {
		status, err := client.GetNodeStatus(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(status.APIVersion).To(Equal("1.5.6"))
		Expect(status.LastAddedBlock.Height).To(Equal(uint64(345)))
	})

	It("sorts metrics and drops comments", func() {
		metrics, err := client.GetNodeMetrics(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(metrics).To(Equal([]string{
			"Mem_Estimator_runtime_s 1.5",
			"amount_of_blocks 12",
			"chain_height 345",
			"mem_deploy_gossiper 0",
		}))
	})

	It("filters metrics by case-insensitive prefix", func() {
		matched, err := client.GetNodeMetric(ctx, "MEM_")
		Expect(err).NotTo(HaveOccurred())
		Expect(matched).To(HaveLen(2))

		matched, err = client.GetNodeMetric(ctx, "xxxxxxxx")
		Expect(err).NotTo(HaveOccurred())
		Expect(matched).To(BeEmpty())
	})

	It("lists RPC endpoints sorted", func() {
		names, err := client.GetRPCEndpoints(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(names).To(Equal([]string{"account_put_deploy", "chain_get_block", "info_get_status"}))
	})

	It("finds one RPC endpoint", func() {
		fragment, err := client.GetRPCEndpoint(ctx, "Account_Put_Deploy")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(fragment)).To(MatchJSON(`{"name": "account_put_deploy", "params": [{"name": "deploy"}]}`))

		_, err = client.GetRPCEndpoint(ctx, "nope")
		Expect(err).To(MatchError(rest.ErrEndpointNotFound))
	})

	It("reads validator changes and the chainspec", func() {
		changes, err := client.GetValidatorChanges(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(changes).To(HaveLen(1))
		Expect(changes[0].PublicKey).To(Equal("01ab"))

		spec, err := client.GetChainspec(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(spec.ChainspecBytes).To(Equal("00ff"))
		Expect(spec.MaybeGenesisAccountsBytes).To(BeNil())
	})

	It("surfaces status errors", func() {
		_, err := rest.NewClient(fakeGetter{}).GetNodeStatus(ctx)
		Expect(err).To(HaveOccurred())
		Expect(fmt.Sprint(err)).To(ContainSubstring("404"))
	})
})

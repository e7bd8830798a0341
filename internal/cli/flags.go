package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/offlinewallet/internal/wallet"
)

// Default device identities used when no identity flags are given.
var (
	defaultMerchant = wallet.DeviceIdentity{
		AccountID:    "merchant-001",
		DeviceID:     "m-dev-1",
		SigningKeyID: "merchant-key",
		LocalCounter: 1,
	}
	defaultPayer = wallet.DeviceIdentity{
		AccountID:    "payer-001",
		DeviceID:     "p-dev-1",
		SigningKeyID: "payer-key",
		LocalCounter: 1,
	}
)

// addIdentityFlags registers --<role>-account, --<role>-device,
// --<role>-key and --<role>-counter.
func addIdentityFlags(cmd *cobra.Command, id *wallet.DeviceIdentity, role string, def wallet.DeviceIdentity) {
	flags := cmd.Flags()
	flags.StringVar(&id.AccountID, role+"-account", def.AccountID, role+" account id")
	flags.StringVar(&id.DeviceID, role+"-device", def.DeviceID, role+" device id")
	flags.StringVar(&id.SigningKeyID, role+"-key", def.SigningKeyID, role+" signing key id")
	flags.Uint32Var(&id.LocalCounter, role+"-counter", def.LocalCounter, role+" local counter")
}

// amountFlags are the flags that describe a payment amount.
type amountFlags struct {
	Amount      string
	AmountCents int64
	Currency    string
}

func addAmountFlags(cmd *cobra.Command, a *amountFlags) {
	flags := cmd.Flags()
	flags.StringVar(&a.Amount, "amount", "", "amount in major units, e.g. 5.60")
	flags.Int64Var(&a.AmountCents, "amount-cents", 0, "amount in minor units, e.g. 560")
	flags.StringVar(&a.Currency, "currency", "CNY", "ISO 4217 currency code")
	cmd.MarkFlagsMutuallyExclusive("amount", "amount-cents")
	cmd.MarkFlagsOneRequired("amount", "amount-cents")
}

// resolve validates the currency and returns the amount in minor units.
func (a amountFlags) resolve(f *OutputFormatter) (int64, string, error) {
	unit, err := parseCurrency(a.Currency)
	if err != nil {
		return 0, "", f.Fail(ExitCommandError, ErrCodeCurrency, err.Error(), nil)
	}
	if a.Amount == "" {
		return a.AmountCents, unit.String(), nil
	}
	cents, err := parseAmount(a.Amount, unit)
	if err != nil {
		return 0, "", f.Fail(ExitCommandError, ErrCodeAmount, err.Error(), nil)
	}
	return cents, unit.String(), nil
}

// readInput returns envelope text from the first argument, from stdin when
// that argument is "-" or absent, or from inFile when set.
func readInput(cmd *cobra.Command, args []string, inFile string) (string, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case inFile != "":
		if len(args) > 0 {
			return "", fmt.Errorf("give the envelope either as an argument or with --in, not both")
		}
		data, err = os.ReadFile(inFile)
	case len(args) == 0 || args[0] == "-":
		data, err = io.ReadAll(cmd.InOrStdin())
	default:
		data = []byte(args[0])
	}
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no envelope given")
	}
	return text, nil
}

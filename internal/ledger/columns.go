package ledger

// ColumnsVersion identifies the layout of Columns. Bump it whenever a column
// is added, removed or renamed.
const ColumnsVersion = 1

// Columns lists the serialized Transaction fields in display order.
var Columns = []string{
	"date_and_time",
	"transaction_type",
	"sent_quantity",
	"sent_currency",
	"sending_source",
	"received_quantity",
	"received_currency",
	"receiving_destination",
	"fee",
	"fee_currency",
	"exchange_transaction_id",
	"blockchain_transaction_hash",
}

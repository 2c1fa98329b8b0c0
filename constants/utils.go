package constants

// job status
const JobSubmitted string = "submitted"
const JobProcessing string = "processing"
const JobCompleted string = "completed"
const JobFailed string = "failed"
const JobCancelled string = "cancelled"

const TASK_TRANSFER string = "market.transfer"

const DEFAULT_DENOM = "umedas"
const DEFAULT_PROVIDER_CAPACITY = 10
const DEFAULT_JOB_TIMEOUT = 3600
const DEFAULT_HEARTBEAT_TIMEOUT = 300

// a client may cancel a still-submitted job only within this many seconds of creation
const CANCEL_WINDOW_SECONDS = 300

const TIMEOUT_FAILURE_REASON = "Job timed out"

const DEFAULT_JOB_PAGE_LIMIT = 10
const MAX_JOB_PAGE_LIMIT = 50
const DEFAULT_PROVIDER_PAGE_LIMIT = 50
const MAX_PROVIDER_PAGE_LIMIT = 100
const MAX_SETTLEMENT_PAGE_LIMIT = 100

const HEADER_ADDRESS = "X-Market-Address"
const HEADER_TIMESTAMP = "X-Market-Timestamp"
const HEADER_SIGNATURE = "X-Market-Signature"
const HEADER_REQUEST_ID = "X-Request-Id"

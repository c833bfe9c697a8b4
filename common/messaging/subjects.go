package messaging

// SubjectAnomaliesCreated is the default fan-out subject for newly persisted
// anomalies. It matches the broadcast stream name observers already use.
const SubjectAnomaliesCreated = "anomalies"

package protocol

// VoteOption is one ballot choice. Tally is only ever changed by the
// on-ledger program; OptionID must stay stable for the record's lifetime.
type VoteOption struct {
	Tally    uint32 `json:"tally"`
	OptionID uint8  `json:"option_id"`
	Label    string `json:"label"`
}

// VotingRecord is the decoded account snapshot of one voting.
type VotingRecord struct {
	VotingID  string       `json:"voting_id"`
	Title     string       `json:"title"`
	StartTime uint64       `json:"start_time"`
	EndTime   uint64       `json:"end_time"`
	Options   []VoteOption `json:"options"`
}

// CreateVotingRequest is the payload of a create instruction. Tallies are
// caller supplied seed values; the program is expected to reset them.
type CreateVotingRequest struct {
	VotingID  string
	Title     string
	StartTime uint64
	EndTime   uint64
	Options   []VoteOption
}

// CastVoteRequest is the payload of a vote instruction.
type CastVoteRequest struct {
	OptionID uint8
}

func EncodeCreateVoting(version SchemaVersion, req CreateVotingRequest) ([]byte, error) {
	layout, err := LayoutFor(RecordCreateVoting, version)
	if err != nil {
		return nil, err
	}
	if err := checkWindow(layout, req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	values := []Value{U8(uint8(OpCreateVoting)), Str(req.VotingID), Str(req.Title)}
	if version == SchemaWindowed {
		values = append(values, U64(req.StartTime), U64(req.EndTime))
	}
	values = append(values, optionsValue(req.Options))
	return Encode(layout, values)
}

func DecodeCreateVoting(version SchemaVersion, buf []byte) (CreateVotingRequest, error) {
	layout, err := LayoutFor(RecordCreateVoting, version)
	if err != nil {
		return CreateVotingRequest{}, err
	}
	values, err := Decode(layout, buf)
	if err != nil {
		return CreateVotingRequest{}, err
	}
	rec := votingFromValues(layout, values)
	return CreateVotingRequest(rec), nil
}

func EncodeVotingRecord(version SchemaVersion, rec VotingRecord) ([]byte, error) {
	layout, err := LayoutFor(RecordVotingAccount, version)
	if err != nil {
		return nil, err
	}
	if err := checkWindow(layout, rec.StartTime, rec.EndTime); err != nil {
		return nil, err
	}
	values := []Value{Str(rec.VotingID), Str(rec.Title)}
	if version == SchemaWindowed {
		values = append(values, U64(rec.StartTime), U64(rec.EndTime))
	}
	values = append(values, optionsValue(rec.Options))
	return Encode(layout, values)
}

func DecodeVotingRecord(version SchemaVersion, buf []byte) (VotingRecord, error) {
	layout, err := LayoutFor(RecordVotingAccount, version)
	if err != nil {
		return VotingRecord{}, err
	}
	values, err := Decode(layout, buf)
	if err != nil {
		return VotingRecord{}, err
	}
	return votingFromValues(layout, values), nil
}

func EncodeCastVote(req CastVoteRequest) ([]byte, error) {
	return Encode(castVoteMinimal, []Value{U8(uint8(OpVote)), U8(req.OptionID)})
}

func DecodeCastVote(buf []byte) (CastVoteRequest, error) {
	values, err := Decode(castVoteMinimal, buf)
	if err != nil {
		return CastVoteRequest{}, err
	}
	return CastVoteRequest{OptionID: values[1].Uint8}, nil
}

// checkWindow refuses to drop a voting window the layout cannot carry.
func checkWindow(layout *Layout, start, end uint64) error {
	if layout.Version == SchemaMinimal && (start != 0 || end != 0) {
		return mismatch(layout, FieldNameStartTime, "minimal schema has no voting window")
	}
	return nil
}

func optionsValue(options []VoteOption) Value {
	items := make([][]Value, 0, len(options))
	for _, o := range options {
		items = append(items, []Value{U32(o.Tally), U8(o.OptionID), Str(o.Label)})
	}
	return Seq(items...)
}

// votingFromValues maps decoded values by field name so both generations
// share one conversion.
func votingFromValues(layout *Layout, values []Value) VotingRecord {
	get := func(name string) Value {
		if i := layout.index(name); i >= 0 {
			return values[i]
		}
		return Value{}
	}
	rec := VotingRecord{
		VotingID:  get(FieldNameVotingID).String,
		Title:     get(FieldNameTitle).String,
		StartTime: get(FieldNameStartTime).Uint64,
		EndTime:   get(FieldNameEndTime).Uint64,
	}
	items := get(FieldNameOptions).Seq
	rec.Options = make([]VoteOption, 0, len(items))
	for _, item := range items {
		rec.Options = append(rec.Options, VoteOption{
			Tally:    item[0].Uint32,
			OptionID: item[1].Uint8,
			Label:    item[2].String,
		})
	}
	return rec
}

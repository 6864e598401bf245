package playerdb

var LikeOperator = likeOperator
